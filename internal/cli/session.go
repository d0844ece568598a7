package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/agentdesk/internal/config"
	"github.com/harun/agentdesk/internal/observability"
	"github.com/harun/agentdesk/internal/tracing"
	"github.com/harun/agentdesk/pkg/commands"
	"github.com/harun/agentdesk/pkg/interrupt"
	"github.com/harun/agentdesk/pkg/plugin"
	"github.com/harun/agentdesk/pkg/remote"
	"github.com/harun/agentdesk/pkg/session"
	"github.com/harun/agentdesk/pkg/stack"
)

var (
	wrapperFile    string
	agentName      string
	nonInteractive bool
)

func runSession(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var wrapper *config.WrapperDefinition
	if wrapperFile != "" {
		wrapper, err = config.LoadWrapper(wrapperFile)
		if err != nil {
			return err
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()
	cliLog := log.Component("cli")

	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	interactive := !nonInteractive && isTerminal(in)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	cliLog.Info().
		Str("version", version).
		Str("config", loader.GetConfigPath()).
		Bool("interactive", interactive).
		Msg("Starting session")

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			cliLog.Warn().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
		}()
	}

	observability.EnsureRegistered()
	if cfg.Metrics.Addr != "" {
		server := startMetricsServer(cfg.Metrics.Addr, cliLog)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	runtimeCfg := plugin.RuntimeConfig{
		PluginDirs:  cfg.PluginDirs,
		Builtins:    cfg.BuiltinAgents,
		ConfigRoot:  cfg.ConfigDir,
		Interactive: interactive,
		RenderMode:  renderMode(out),
	}
	if wrapper != nil {
		runtimeCfg.Wrapper = &plugin.WrapperTarget{Agent: wrapper.Agent, Context: wrapper.Context}
	}
	registry, result := plugin.NewAgentRuntime(zl, builtinFactories(out, zl), runtimeCfg).Load(ctx)
	defer func() {
		if err := registry.Close(); err != nil {
			cliLog.Warn().Err(err).Msg("Failed to release agents")
		}
	}()

	router := commands.NewRouter(zl)
	agentStack := stack.New(router, interactive, zl)

	ctrl := interrupt.New(ctx, zl)
	ctrl.Start()
	defer ctrl.Stop()

	var channel remote.Channel
	if cfg.Remote.Enabled() {
		redisChannel, err := remote.NewRedisChannel(remote.RedisConfig{
			Address:  cfg.Remote.RedisAddr,
			Password: cfg.Remote.RedisPassword,
			DB:       cfg.Remote.RedisDB,
			Queue:    cfg.Remote.Queue,
		}, zl)
		if err != nil {
			return fmt.Errorf("failed to create remote channel: %w", err)
		}
		redisChannel.Start()
		defer redisChannel.Close()
		channel = redisChannel
	}

	console := session.NewConsole(in, out)

	var transcript *session.Transcript
	if cfg.Session.Transcripts {
		transcript, err = openTranscript(cfg, zl)
		if err != nil {
			cliLog.Warn().Err(err).Msg("Transcripts disabled")
		}
	}

	loop, err := session.New(session.Options{
		Registry:         registry,
		Stack:            agentStack,
		Router:           router,
		Interrupt:        ctrl,
		Remote:           channel,
		Terminal:         console,
		Clipboard:        session.SystemClipboard{},
		ClipboardEnabled: cfg.Features.Clipboard,
		Transcript:       transcript,
		SaveDefault:      loader.SaveDefaultAgent,
		Interactive:      interactive,
		ReadyTimeout:     cfg.Remote.ReadyTimeout,
		Logger:           zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	failed := make([]string, 0, len(result.Errors))
	for name := range result.Errors {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		console.Warn(fmt.Sprintf("Agent '%s' failed to load: %v", name, result.Errors[name]))
	}

	sel := session.Selection{Default: cfg.DefaultAgent}
	if agentName != "" {
		sel.Default = agentName
	}
	if wrapper != nil {
		sel.Wrapper = wrapper.Agent
	}
	loop.SelectInitial(ctx, sel)

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openTranscript opens the transcript store and prunes expired sessions
func openTranscript(cfg *config.Config, logger zerolog.Logger) (*session.Transcript, error) {
	transcript, err := session.NewTranscript(filepath.Join(cfg.DataDir, "sessions"), logger)
	if err != nil {
		return nil, err
	}
	if cfg.Session.TranscriptMaxAge > 0 {
		pruned, err := transcript.Prune(cfg.Session.TranscriptMaxAge)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to prune transcripts")
		} else if pruned > 0 {
			logger.Info().Int("count", pruned).Msg("Pruned expired transcripts")
		}
	}
	return transcript, nil
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics endpoint stopped")
		}
	}()
	return server
}
