package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harun/agentdesk/pkg/plugin"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents a session would load",
	Long: `Load every enabled built-in agent and every plugin found in the plugin
directories, print the ones that came up and the ones that failed, then release
them again.`,
	Args: cobra.NoArgs,
	RunE: runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	runtime := plugin.NewAgentRuntime(log.GetZerolog(), builtinFactories(io.Discard, log.GetZerolog()), plugin.RuntimeConfig{
		PluginDirs: cfg.PluginDirs,
		Builtins:   cfg.BuiltinAgents,
		ConfigRoot: cfg.ConfigDir,
	})
	registry, result := runtime.Load(cmd.Context())
	defer registry.Close()

	out := cmd.OutOrStdout()
	if registry.Len() == 0 {
		fmt.Fprintln(out, "No agents loaded")
	} else {
		fmt.Fprintln(out, "Loaded agents:")
		for _, a := range registry.All() {
			marker := ""
			if a.Name() == cfg.DefaultAgent {
				marker = " (default)"
			}
			fmt.Fprintf(out, "  %s%s  %s\n", a.Name(), marker, a.Description())
		}
	}

	if len(result.Failed) > 0 {
		failed := append([]string(nil), result.Failed...)
		sort.Strings(failed)
		fmt.Fprintln(out, "Failed agents:")
		for _, name := range failed {
			fmt.Fprintf(out, "  %s  %v\n", name, result.Errors[name])
		}
	}
	return nil
}
