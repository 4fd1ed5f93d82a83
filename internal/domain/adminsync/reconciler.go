package adminsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/lock"
	"github.com/campus-events/server/internal/metrics"
)

const (
	reconcileLockKey = "adminsync:reconcile"
	unlockTimeout    = 5 * time.Second
)

// ReconcilerConfig bounds one pass. Push pacing belongs to the transport.
type ReconcilerConfig struct {
	BatchSize   int
	Concurrency int
	LockTTL     time.Duration
}

// Report summarizes one reconciliation pass.
type Report struct {
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	RemoteDown bool          `json:"remoteDown"`
	Locked     bool          `json:"locked"`
	Duration   time.Duration `json:"duration"`
}

// Reconciler retries records the create path failed to deliver.
type Reconciler struct {
	orchestrator *Orchestrator
	locker       lock.Locker
	cfg          ReconcilerConfig
	logger       zerolog.Logger
}

func NewReconciler(orchestrator *Orchestrator, locker lock.Locker, cfg ReconcilerConfig, logger zerolog.Logger) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Reconciler{
		orchestrator: orchestrator,
		locker:       locker,
		cfg:          cfg,
		logger:       logger.With().Str("component", "reconciler").Logger(),
	}
}

// Candidates lists the records the next pass would attempt, without pushing.
func (r *Reconciler) Candidates(ctx context.Context) ([]events.Event, error) {
	candidates, err := r.orchestrator.store.ListSyncCandidates(ctx, r.orchestrator.now(), r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list sync candidates: %w", err)
	}
	return candidates, nil
}

// ReconcileAll runs one health-gated pass over due, unsynced records.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Report, error) {
	start := time.Now()
	report, result, err := r.reconcile(ctx)
	report.Duration = time.Since(start)

	metrics.ReconcileRunsTotal.WithLabelValues(result).Inc()
	metrics.ReconcileDuration.Observe(report.Duration.Seconds())
	metrics.ReconcileRecordsTotal.WithLabelValues("succeeded").Add(float64(report.Succeeded))
	metrics.ReconcileRecordsTotal.WithLabelValues("failed").Add(float64(report.Failed))
	metrics.ReconcileRecordsTotal.WithLabelValues("skipped").Add(float64(report.Skipped))

	if err == nil && result == "completed" {
		r.logger.Info().
			Int("attempted", report.Attempted).
			Int("succeeded", report.Succeeded).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Dur("duration", report.Duration).
			Msg("reconciliation pass finished")
	}
	return report, err
}

func (r *Reconciler) reconcile(ctx context.Context) (Report, string, error) {
	var report Report
	if !r.orchestrator.enabled {
		r.logger.Debug().Msg("admin sync disabled, skipping reconciliation")
		return report, "disabled", nil
	}

	unlock, err := r.locker.TryLock(ctx, reconcileLockKey, r.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			r.logger.Info().Msg("reconciliation already running elsewhere")
			report.Locked = true
			return report, "locked", nil
		}
		return report, "error", fmt.Errorf("acquire reconcile lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if err := unlock(unlockCtx); err != nil {
			r.logger.Warn().Err(err).Msg("failed to release reconcile lock")
		}
	}()

	if !r.orchestrator.transport.CheckHealth(ctx) {
		r.logger.Warn().Msg("admin portal unhealthy, skipping reconciliation")
		report.RemoteDown = true
		return report, "remote_down", nil
	}

	candidates, err := r.Candidates(ctx)
	if err != nil {
		return report, "error", err
	}
	if len(candidates) == 0 {
		return report, "completed", nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, candidate := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, _ := r.orchestrator.SyncEvent(gctx, candidate, TriggerReconcile)

			mu.Lock()
			defer mu.Unlock()
			report.Attempted++
			switch outcome {
			case OutcomeSynced:
				report.Succeeded++
			case OutcomeFailed:
				report.Failed++
			default:
				report.Skipped++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, "error", fmt.Errorf("reconciliation interrupted: %w", err)
	}
	return report, "completed", nil
}
