package adminsync

import (
	"context"
	"time"

	"github.com/campus-events/server/internal/domain/events"
)

// Store is the persisted sync state the orchestrator and reconciler rely on.
// Lookups report events.ErrNotFound for unknown ids.
type Store interface {
	GetByID(ctx context.Context, id int64) (*events.Event, error)

	// ListSyncCandidates returns unsynced, non-halted events that are neither
	// draft nor cancelled, whose next attempt is due at now and whose claim
	// lease has expired, oldest first.
	ListSyncCandidates(ctx context.Context, now time.Time, limit int) ([]events.Event, error)

	// ClaimSyncAttempt increments the attempt counter and takes a lease until
	// leaseUntil, only while the record is unsynced, still at
	// expectedAttempts and not leased past at. false means another attempt
	// holds or already took the record.
	ClaimSyncAttempt(ctx context.Context, id int64, expectedAttempts int, at, leaseUntil time.Time) (bool, error)

	// MarkSynced flips synced to true and drops the lease. false means it was
	// already true.
	MarkSynced(ctx context.Context, id int64, remoteID string, at time.Time) (bool, error)

	// MarkSyncFailed records the failure and drops the lease.
	MarkSyncFailed(ctx context.Context, id int64, failure SyncFailure) error

	// ApplyRemoteStatus records an admin portal decision. A locally cancelled
	// event only accepts "cancelled"; anything else is
	// events.ErrInvalidTransition.
	ApplyRemoteStatus(ctx context.Context, update StatusUpdate) (*events.Event, error)

	CountUnsynced(ctx context.Context) (int64, error)
}

// SyncFailure records a failed attempt. A nil NextAttemptAt with Halt set
// removes the record from automatic reconciliation.
type SyncFailure struct {
	Message       string
	NextAttemptAt *time.Time
	Halt          bool
}

// StatusUpdate is a status decision received from the admin portal.
type StatusUpdate struct {
	TeacherPortalID int64
	Status          events.Status
	Note            string
	At              time.Time
}

// StatusNotifier is told about status changes applied from the admin portal.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, event events.Event) error
}
