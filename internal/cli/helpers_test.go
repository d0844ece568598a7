package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentdesk/internal/config"
)

// resetFlags restores every flag of cmd and its children to its default, since
// the command tree is package state shared by all tests
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the root command with args and stdin and returns its output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)
	t.Cleanup(func() { resetFlags(cmd) })

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return output.String(), err
}

// writeConfig saves a config under a temp dir after edit adjusts the defaults
func writeConfig(t *testing.T, edit func(cfg *config.Config)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agentdesk.json")
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	if edit != nil {
		edit(cfg)
	}
	require.NoError(t, loader.Save(cfg))
	return path
}
