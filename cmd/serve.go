package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/briefly-ai/briefly/api"
	"github.com/briefly-ai/briefly/internal/observability"
	"github.com/briefly-ai/briefly/internal/tts"
	"github.com/briefly-ai/briefly/internal/watch"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: cfg.ServiceName,
		}, logger)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("trace flush failed", "error", err)
			}
		}()
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	// Serve yesterday's knowledge until the first refresh; missing archive
	// data just means starting empty.
	if err := app.coordinator.Bootstrap(ctx); err != nil {
		logger.Warn("snapshot bootstrap failed, starting empty", "error", err)
	}

	// PDF uploads trigger a refresh automatically.
	if cfg.UploadsDir != "" {
		watcher, err := watch.New(cfg.UploadsDir, func() bool {
			accepted, _ := app.coordinator.Trigger()
			return accepted
		}, 0, logger)
		if err != nil {
			return fmt.Errorf("creating uploads watcher: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("uploads watcher stopped", "error", err)
			}
		}()
	}

	server, err := api.NewServer(api.ServerConfig{
		Retriever: app.retriever,
		Builder:   app.builder,
		Generator: app.orchestra,
		Refresher: app.coordinator,
		Speech:    tts.New(app.client, cfg.TTSModel, "", logger),
		Snapshots: app.coordinator,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}
	return server.Run(ctx, addr)
}
