package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/agentdesk/pkg/plugin"
	"github.com/harun/agentdesk/pkg/remote"
	"github.com/harun/agentdesk/pkg/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and remote channel status",
	Long: `Show where agentdesk reads its configuration, which agent sources are
enabled, whether the remote query channel is reachable and when the last session
was recorded.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	configPath := loader.GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Config: %s\n", configPath)
	} else {
		fmt.Fprintf(out, "Config: %s (not found, using defaults)\n", configPath)
	}
	fmt.Fprintf(out, "Data dir: %s\n", cfg.DataDir)

	fmt.Fprintf(out, "Built-in agents: %s\n", listOrNone(cfg.BuiltinAgents))
	discovered := plugin.NewAgentDiscovery(zerolog.Nop()).Discover(cfg.PluginDirs)
	fmt.Fprintf(out, "Plugin agents: %d found in %s\n", len(discovered), listOrNone(cfg.PluginDirs))
	if cfg.DefaultAgent != "" {
		fmt.Fprintf(out, "Default agent: %s\n", cfg.DefaultAgent)
	} else {
		fmt.Fprintln(out, "Default agent: none")
	}

	fmt.Fprintf(out, "Remote: %s\n", remoteStatus(cmd.Context(), cfg.Remote.Enabled(), remote.RedisConfig{
		Address:  cfg.Remote.RedisAddr,
		Password: cfg.Remote.RedisPassword,
		DB:       cfg.Remote.RedisDB,
		Queue:    cfg.Remote.Queue,
	}))

	if cfg.Session.Transcripts {
		fmt.Fprintf(out, "Last session: %s\n", lastSession(filepath.Join(cfg.DataDir, "sessions")))
	}
	return nil
}

func remoteStatus(ctx context.Context, enabled bool, rc remote.RedisConfig) string {
	if !enabled {
		return "disabled"
	}
	channel, err := remote.NewRedisChannel(rc, zerolog.Nop())
	if err != nil {
		return fmt.Sprintf("misconfigured (%v)", err)
	}
	defer channel.Close()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	pending, err := channel.Pending(ctx)
	if err != nil {
		return fmt.Sprintf("%s unreachable (%v)", rc.Address, err)
	}
	return fmt.Sprintf("%s, %d queued", rc.Address, pending)
}

func lastSession(dir string) string {
	if _, err := os.Stat(dir); err != nil {
		return "none"
	}
	transcript, err := session.NewTranscript(dir, zerolog.Nop())
	if err != nil {
		return "unknown"
	}
	sessions, err := transcript.List()
	if err != nil || len(sessions) == 0 {
		return "none"
	}

	var latest time.Time
	for _, s := range sessions {
		if s.LastModified.After(latest) {
			latest = s.LastModified
		}
	}
	return formatDuration(time.Since(latest)) + " ago"
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
