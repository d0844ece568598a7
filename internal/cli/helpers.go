package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harun/agentdesk/internal/config"
	"github.com/harun/agentdesk/internal/logger"
	"github.com/harun/agentdesk/pkg/agent"
)

// loadConfig reads the config named by --config and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		cfg.Logging.Level = logLevel
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return loader, cfg, nil
}

// newLogger builds the process logger from the logging section
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
}

// isTerminal reports whether stream is a file attached to a terminal
func isTerminal(stream interface{}) bool {
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderMode streams output on a terminal and writes whole responses otherwise
func renderMode(out io.Writer) agent.RenderMode {
	if isTerminal(out) {
		return agent.RenderIncremental
	}
	return agent.RenderFull
}
