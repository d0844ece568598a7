package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd starts an interactive session when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "agentdesk - terminal front desk for chat agents",
	Long: `agentdesk hosts a set of chat agents behind one terminal session.
Agents are compiled in or loaded as plugins; the session routes each query to
the active agent, lets agents delegate to one another and accepts queries from
a remote channel while waiting for terminal input.`,
	Version:       version,
	Args:          cobra.NoArgs,
	RunE:          runSession,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentdesk/agentdesk.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Session flags
	rootCmd.Flags().StringVar(&wrapperFile, "wrapper", "", "wrapper definition designating the initial agent")
	rootCmd.Flags().StringVar(&agentName, "agent", "", "agent to activate at startup")
	rootCmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "never prompt, even on a terminal")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
