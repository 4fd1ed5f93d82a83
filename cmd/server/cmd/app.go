package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/email"
	"github.com/campus-events/server/internal/jobs"
	"github.com/campus-events/server/internal/lock"
	"github.com/campus-events/server/internal/metrics"
	"github.com/campus-events/server/internal/storage/postgres"
)

// app holds the wired services shared by serve and reconcile.
type app struct {
	cfg          config.Config
	logger       zerolog.Logger
	pool         *pgxpool.Pool
	repo         *postgres.EventRepository
	transport    *adminsync.HTTPTransport
	orchestrator *adminsync.Orchestrator
	reconciler   *adminsync.Reconciler
	events       *events.Service
	river        *river.Client[pgx.Tx]
	jwt          *auth.JWTManager

	closers []func()
}

type appOptions struct {
	// withJobs starts a River client for the periodic reconcile pass and
	// status notification emails.
	withJobs bool
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)

	repo, err := postgres.NewEventRepository(pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("event repository: %w", err)
	}
	a.repo = repo

	locker, err := newLocker(cfg.Redis, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closer, ok := locker.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = closer.Close() })
	}

	a.transport = newTransport(cfg.AdminSync, logger)

	backoff := adminsync.DefaultBackoff()
	backoff.Base = cfg.Reconcile.BackoffBase
	backoff.Max = cfg.Reconcile.BackoffMax
	syncCfg := adminsync.Config{
		Enabled:  cfg.AdminSync.Enabled,
		Backoff:  backoff,
		ClaimTTL: claimTTL(cfg.AdminSync.PushTimeout),
	}
	mapper := adminsync.NewMapper(adminsync.MapperDefaults{Campus: cfg.Events.DefaultCampus}, nil)

	var orchestratorOpts []adminsync.OrchestratorOption
	if opts.withJobs {
		mailer, err := email.NewService(cfg.Email, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("email service: %w", err)
		}
		slogger := config.NewSlogLogger(cfg.Logging)
		// The reconcile worker is registered before the reconciler exists.
		workers := jobs.NewWorkers(jobs.WorkerDeps{
			Reconciler: jobs.ReconcilerFunc(func(ctx context.Context) (adminsync.Report, error) {
				return a.reconciler.ReconcileAll(ctx)
			}),
			Events:  repo,
			Mailer:  mailer,
			BaseURL: cfg.Server.BaseURL,
			Logger:  slogger,
		})
		client, err := newRiverClient(pool, workers, slogger, cfg.Reconcile.Schedule)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.river = client
		orchestratorOpts = append(orchestratorOpts, adminsync.WithNotifier(jobs.NewStatusNotifier(client)))
	}

	a.orchestrator = adminsync.NewOrchestrator(syncCfg, mapper, a.transport, repo, logger, orchestratorOpts...)
	a.reconciler = adminsync.NewReconciler(a.orchestrator, locker, adminsync.ReconcilerConfig{
		BatchSize:   cfg.Reconcile.BatchSize,
		Concurrency: cfg.Reconcile.Concurrency,
		LockTTL:     cfg.Reconcile.LockTTL,
	}, logger)
	a.events = events.NewService(repo, a.orchestrator, events.ServiceConfig{
		AutoApprove:   cfg.Events.AutoApprove,
		DefaultCampus: cfg.Events.DefaultCampus,
	}, logger)

	if cfg.Webhook.Secret != "" {
		a.jwt = auth.NewJWTManager(cfg.Webhook.Secret, cfg.Webhook.Expiry, cfg.Webhook.Issuer)
	} else {
		logger.Warn().Msg("WEBHOOK_SECRET not set, webhook and admin-sync routes will reject every request")
	}

	return a, nil
}

// newTransport builds the admin portal client shared by the create path,
// manual retries and reconciliation, so ADMIN_SYNC_RATE_LIMIT paces all of
// them together.
func newTransport(cfg config.AdminSyncConfig, logger zerolog.Logger) *adminsync.HTTPTransport {
	return adminsync.NewHTTPTransport(cfg.PortalURL,
		adminsync.WithTimeouts(cfg.PushTimeout, cfg.HealthTimeout),
		adminsync.WithSource(cfg.Source),
		adminsync.WithRateLimit(cfg.RateLimit),
		adminsync.WithLogger(logger),
	)
}

// claimTTL keeps a record reserved for the whole push plus the writes that
// follow it.
func claimTTL(pushTimeout time.Duration) time.Duration {
	if pushTimeout <= 0 {
		pushTimeout = adminsync.DefaultPushTimeout
	}
	return pushTimeout + 30*time.Second
}

func newRiverClient(pool *pgxpool.Pool, workers *river.Workers, slogger *slog.Logger, schedule string) (*river.Client[pgx.Tx], error) {
	periodic, err := jobs.NewPeriodicJobs(schedule)
	if err != nil {
		return nil, err
	}
	client, err := jobs.NewClient(pool, workers, slogger, []rivertype.Hook{metrics.NewRiverMetricsHook()}, periodic)
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	return client, nil
}

// newLocker uses Redis when REDIS_URL is set so passes are exclusive across
// instances; otherwise the lock only covers this process.
func newLocker(cfg config.RedisConfig, logger zerolog.Logger) (lock.Locker, error) {
	if cfg.URL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-process reconcile lock")
		return lock.NewLocalLocker(), nil
	}
	locker, err := lock.NewRedisLocker(lock.RedisOptions{
		URL:            cfg.URL,
		Prefix:         cfg.Prefix,
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	logger.Info().Msg("using redis reconcile lock")
	return locker, nil
}

// enqueueReconcile is nil when no River client is running.
func (a *app) enqueueReconcile() func(ctx context.Context) error {
	if a.river == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return jobs.EnqueueReconcile(ctx, a.river)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
