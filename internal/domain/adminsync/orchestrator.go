package adminsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/metrics"
)

// Trigger names what started a sync attempt.
type Trigger string

const (
	TriggerCreate    Trigger = "create"
	TriggerReconcile Trigger = "reconcile"
	TriggerManual    Trigger = "manual"
)

// Outcome is the result of one SyncEvent call.
type Outcome string

const (
	OutcomeSynced   Outcome = "synced"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDisabled Outcome = "disabled"
)

const (
	failureWriteTimeout = 5 * time.Second
	// claimMargin covers the bookkeeping writes after a push returns.
	claimMargin = 30 * time.Second
)

type Config struct {
	Enabled  bool
	Backoff  Backoff
	// ClaimTTL is how long a claimed record stays reserved for one attempt.
	// It must outlast a push; zero uses DefaultPushTimeout plus a margin.
	ClaimTTL time.Duration
}

// Orchestrator owns the per-record sync routine shared by the create path,
// the reconciler and manual retries, plus the reverse status hook.
type Orchestrator struct {
	enabled   bool
	backoff   Backoff
	claimTTL  time.Duration
	mapper    *Mapper
	transport Transport
	store     Store
	notifier  StatusNotifier
	now       func() time.Time
	logger    zerolog.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithNotifier registers a receiver for applied remote status changes.
func WithNotifier(notifier StatusNotifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(cfg Config, mapper *Mapper, transport Transport, store Store, logger zerolog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if mapper == nil {
		mapper = defaultMapper
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultPushTimeout + claimMargin
	}
	o := &Orchestrator{
		enabled:   cfg.Enabled,
		backoff:   cfg.Backoff,
		claimTTL:  cfg.ClaimTTL,
		mapper:    mapper,
		transport: transport,
		store:     store,
		now:       time.Now,
		logger:    logger.With().Str("component", "adminsync").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Enabled() bool {
	return o.enabled
}

// CheckHealth probes the admin portal. It reports false when sync is disabled.
func (o *Orchestrator) CheckHealth(ctx context.Context) bool {
	if !o.enabled {
		return false
	}
	return o.transport.CheckHealth(ctx)
}

// OnEventCreated runs the create-path attempt for a freshly stored event.
// It returns once the attempt has finished; failures are logged and the
// record is left for reconciliation.
func (o *Orchestrator) OnEventCreated(ctx context.Context, event events.Event) {
	_, _ = o.SyncEvent(ctx, event, TriggerCreate)
}

// SyncEvent claims, maps and pushes one event and persists the result.
// The returned error describes a failed attempt; it never indicates a change
// to the local event itself.
func (o *Orchestrator) SyncEvent(ctx context.Context, event events.Event, trigger Trigger) (Outcome, error) {
	outcome, err := o.syncEvent(ctx, event, trigger)
	metrics.SyncOutcomesTotal.WithLabelValues(string(trigger), string(outcome)).Inc()
	return outcome, err
}

func (o *Orchestrator) syncEvent(ctx context.Context, event events.Event, trigger Trigger) (Outcome, error) {
	logger := o.logger.With().
		Int64("event_id", event.ID).
		Str("trigger", string(trigger)).
		Logger()

	if !o.enabled {
		logger.Debug().Msg("admin sync disabled, skipping")
		return OutcomeDisabled, nil
	}
	if event.Status == events.StatusDraft {
		logger.Debug().Msg("draft event, not syncing until submitted")
		return OutcomeSkipped, nil
	}
	if event.Sync.Synced {
		return OutcomeSkipped, nil
	}
	if event.Status == events.StatusCancelled {
		logger.Debug().Msg("event cancelled before reaching admin portal, not syncing")
		return OutcomeSkipped, nil
	}

	now := o.now()
	claimed, err := o.store.ClaimSyncAttempt(ctx, event.ID, event.Sync.Attempts, now, now.Add(o.claimTTL))
	if err != nil {
		logger.Error().Err(err).Msg("failed to claim sync attempt")
		return OutcomeFailed, fmt.Errorf("claim sync attempt: %w", err)
	}
	if !claimed {
		logger.Debug().Msg("sync attempt already claimed")
		return OutcomeSkipped, nil
	}
	attempt := event.Sync.Attempts + 1

	remote, err := o.mapper.ToRemote(event)
	if err != nil {
		logger.Error().Err(err).Msg("event cannot be mapped to admin portal schema, halting sync")
		o.recordFailure(ctx, logger, event.ID, attempt, err, true)
		return OutcomeFailed, err
	}

	ack, err := o.transport.PushEvent(ctx, remote)
	if err != nil {
		if IsKind(err, KindConnectionRefused) {
			logger.Warn().Err(err).Msg("admin portal not running, event kept locally")
		} else {
			logger.Error().Err(err).Int("attempt", attempt).Msg("failed to send event to admin portal")
		}
		o.recordFailure(ctx, logger, event.ID, attempt, err, false)
		return OutcomeFailed, err
	}

	changed, err := o.store.MarkSynced(ctx, event.ID, ack.ID, o.now())
	if err != nil {
		logger.Error().Err(err).Str("remote_id", ack.ID).Msg("event pushed but sync state not saved")
		return OutcomeFailed, fmt.Errorf("mark synced: %w", err)
	}
	if !changed {
		logger.Debug().Msg("event already marked synced")
		return OutcomeSkipped, nil
	}

	logger.Info().Str("remote_id", ack.ID).Int("attempt", attempt).Msg("event sent to admin portal")
	return OutcomeSynced, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, logger zerolog.Logger, id int64, attempt int, cause error, halt bool) {
	failure := SyncFailure{Message: cause.Error(), Halt: halt}
	if !halt {
		next := o.now().Add(o.backoff.Delay(attempt))
		failure.NextAttemptAt = &next
	}

	// The attempt may have failed because ctx expired; the bookkeeping must
	// still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := o.store.MarkSyncFailed(writeCtx, id, failure); err != nil {
		logger.Error().Err(err).Msg("failed to record sync failure")
	}
}

// OnRemoteStatusChanged applies a status decision made in the admin portal.
func (o *Orchestrator) OnRemoteStatusChanged(ctx context.Context, teacherPortalID int64, status string, note string) error {
	if !o.enabled {
		return nil
	}

	remoteStatus := RemoteStatus(status)
	if !remoteStatus.Valid() {
		metrics.RemoteStatusUpdatesTotal.WithLabelValues("unknown", "invalid").Inc()
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	updated, err := o.store.ApplyRemoteStatus(ctx, StatusUpdate{
		TeacherPortalID: teacherPortalID,
		Status:          events.Status(remoteStatus),
		Note:            note,
		At:              o.now(),
	})
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			metrics.RemoteStatusUpdatesTotal.WithLabelValues(status, "not_found").Inc()
			return &NotFoundError{TeacherPortalID: teacherPortalID}
		}
		if errors.Is(err, events.ErrInvalidTransition) {
			metrics.RemoteStatusUpdatesTotal.WithLabelValues(status, "conflict").Inc()
			o.logger.Warn().
				Int64("event_id", teacherPortalID).
				Str("status", status).
				Msg("ignoring admin portal decision for locally cancelled event")
			return fmt.Errorf("%w: event %d", ErrEventCancelled, teacherPortalID)
		}
		metrics.RemoteStatusUpdatesTotal.WithLabelValues(status, "error").Inc()
		return fmt.Errorf("apply remote status: %w", err)
	}
	metrics.RemoteStatusUpdatesTotal.WithLabelValues(status, "applied").Inc()

	o.logger.Info().
		Int64("event_id", teacherPortalID).
		Str("status", status).
		Msg("event status updated from admin portal")

	if o.notifier != nil {
		if err := o.notifier.NotifyStatusChange(ctx, *updated); err != nil {
			o.logger.Warn().Err(err).Int64("event_id", teacherPortalID).Msg("failed to queue status notification")
		}
	}
	return nil
}

// SyncStatus summarizes sync health for operators.
type SyncStatus struct {
	Enabled       bool  `json:"enabled"`
	RemoteHealthy bool  `json:"remoteHealthy"`
	Unsynced      int64 `json:"unsynced"`
}

// Status probes the admin portal and counts unsynced events. When sync is
// disabled it reports that without touching the transport.
func (o *Orchestrator) Status(ctx context.Context) (SyncStatus, error) {
	status := SyncStatus{Enabled: o.enabled}
	unsynced, err := o.store.CountUnsynced(ctx)
	if err != nil {
		return status, fmt.Errorf("count unsynced events: %w", err)
	}
	status.Unsynced = unsynced
	metrics.UnsyncedEvents.Set(float64(unsynced))

	status.RemoteHealthy = o.CheckHealth(ctx)
	return status, nil
}
