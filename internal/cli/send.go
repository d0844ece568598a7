package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/agentdesk/pkg/remote"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <query>",
	Short: "Queue a query for a running session",
	Long: `Push a query onto the remote query channel. A running session picks it up
while it waits for terminal input and dispatches it like a typed query.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "time allowed to reach the queue")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Remote.Enabled() {
		return fmt.Errorf("remote channel is not configured: set remote.redis_addr")
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	channel, err := remote.NewRedisChannel(remote.RedisConfig{
		Address:  cfg.Remote.RedisAddr,
		Password: cfg.Remote.RedisPassword,
		DB:       cfg.Remote.RedisDB,
		Queue:    cfg.Remote.Queue,
	}, zerolog.Nop())
	if err != nil {
		return err
	}
	defer channel.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()
	if err := channel.Publish(ctx, query); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Query queued on %s\n", cfg.Remote.Queue)
	return nil
}
