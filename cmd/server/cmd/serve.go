package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/campus-events/server/internal/api"
	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/metrics"
	"github.com/campus-events/server/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
	noJobs     bool
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the teacher portal HTTP server",
		Long: `Start the teacher portal HTTP server and background jobs.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Serve the events API, the admin portal webhook and the admin-sync endpoints
- Run the scheduled reconciliation pass and status notification emails via River
- Handle graceful shutdown on SIGINT/SIGTERM, waiting for in-flight syncs

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Serve HTTP only, without the job queue
  server serve --no-jobs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 3001)")
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "disable River workers and the scheduled reconcile pass")
	return cmd
}

func runServer(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("admin_portal", cfg.AdminSync.PortalURL).
		Bool("admin_sync_enabled", cfg.AdminSync.Enabled).
		Msg("starting teacher portal server")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown error")
		}
	}()

	a, err := newApp(ctx, cfg, logger, appOptions{withJobs: !noJobs})
	if err != nil {
		return err
	}
	defer a.Close()

	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	defer collectorCancel()
	go metrics.NewDBCollector(a.pool).Run(collectorCtx, 15*time.Second)

	if a.river != nil {
		if err := a.river.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Str("schedule", cfg.Reconcile.Schedule).Msg("river workers started")
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.river.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("river workers stopped")
			}
		}()
	} else {
		logger.Warn().Msg("job queue disabled, reconciliation runs only on demand")
	}

	handler := api.NewRouter(api.RouterDeps{
		Events:       a.events,
		Sync:         a.orchestrator,
		Reconciler:   a.reconciler,
		DB:           a.pool,
		JWT:          a.jwt,
		Enqueue:      a.enqueueReconcile(),
		JobQueue:     a.river != nil,
		Environment:  cfg.Environment,
		RequireHTTPS: cfg.Environment == "production",
		Version:      Version,
		GitCommit:    GitCommit,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return gracefulShutdown(server, a, logger)
}

// gracefulShutdown stops accepting requests, then waits for create-path
// syncs that are still talking to the admin portal.
func gracefulShutdown(server *http.Server, a *app, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	if err := a.events.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("in-flight admin syncs did not finish, reconciliation will retry them")
	}

	logger.Info().Msg("server stopped")
	return nil
}
