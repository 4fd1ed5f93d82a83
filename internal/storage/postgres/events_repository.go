package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/metrics"
)

// EventRepository stores events together with their admin portal sync state.
// It satisfies both events.Repository and adminsync.Store.
type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var (
	_ events.Repository = (*EventRepository)(nil)
	_ adminsync.Store   = (*EventRepository)(nil)
)

func NewEventRepository(pool *pgxpool.Pool) (*EventRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres event repository: pool is nil")
	}
	return &EventRepository{pool: pool}, nil
}

// WithTx runs fn against a repository bound to a single transaction.
func (r *EventRepository) WithTx(ctx context.Context, fn func(*EventRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&EventRepository{pool: r.pool, tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const eventColumns = `
	id, title, description, event_type, start_date, end_date, start_time, end_time,
	location, max_participants, registration_required, registration_deadline, is_public,
	tags, image_url, requirements, contact_email, contact_phone, campus, status,
	created_by, created_by_name, created_by_email, admin_notes, rejection_reason,
	approved_at, is_active, created_at, updated_at,
	synced, synced_at, remote_id, sync_key, sync_attempts, last_sync_attempt_at,
	next_sync_at, last_sync_error, sync_halted, sync_claimed_until`

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (event *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("create_event", start, err) }(time.Now())

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	row := r.queryer().QueryRow(ctx, `
INSERT INTO events (
	title, description, event_type, start_date, end_date, start_time, end_time,
	location, max_participants, registration_required, registration_deadline, is_public,
	tags, image_url, requirements, contact_email, contact_phone, campus, status,
	created_by, created_by_name, created_by_email, sync_key
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19,
	$20, $21, $22, $23
)
RETURNING `+eventColumns,
		params.Title, params.Description, params.EventType, params.StartDate, params.EndDate,
		params.StartTime, params.EndTime, params.Location, params.MaxParticipants,
		params.RegistrationRequired, params.RegistrationDeadline, params.IsPublic,
		tags, params.ImageURL, params.Requirements, params.ContactEmail, params.ContactPhone,
		params.Campus, string(params.Status), params.CreatedBy, params.CreatedByName,
		params.CreatedByEmail, params.SyncKey,
	)
	event, err = scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (event *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_event", start, err) }(time.Now())

	row := r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err = scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return event, nil
}

// List returns events newest first.
func (r *EventRepository) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (list []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_events", start, err) }(time.Now())

	var (
		where []string
		args  []any
	)
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.Campus != "" {
		args = append(args, filters.Campus)
		where = append(where, fmt.Sprintf("campus = $%d", len(args)))
	}
	if filters.Synced != nil {
		args = append(args, *filters.Synced)
		where = append(where, fmt.Sprintf("synced = $%d", len(args)))
	}

	limit := pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// Transition changes status only when the current status is one of
// params.From.
func (r *EventRepository) Transition(ctx context.Context, id int64, params events.TransitionParams) (event *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("transition_event", start, err) }(time.Now())

	row := r.queryer().QueryRow(ctx, `
UPDATE events
   SET status = $2,
       is_active = CASE WHEN $3::boolean THEN false ELSE is_active END,
       updated_at = now()
 WHERE id = $1
   AND status = ANY($4::text[])
RETURNING `+eventColumns,
		id, string(params.To), params.Deactivate, statusStrings(params.From),
	)
	event, err = scanEvent(row)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition event %d: %w", id, err)
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, events.ErrNotFound
	}
	return nil, events.ErrInvalidTransition
}

// Update rewrites the editable fields. Editing a rejected event sends it back
// to pending with a fresh sync key so it is delivered again. Cancelled events
// are read-only.
func (r *EventRepository) Update(ctx context.Context, id int64, params events.UpdateParams) (event *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("update_event", start, err) }(time.Now())

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	row := r.queryer().QueryRow(ctx, `
UPDATE events
   SET title = $2,
       description = $3,
       event_type = $4,
       start_date = $5,
       end_date = $6,
       start_time = $7,
       end_time = $8,
       location = $9,
       max_participants = $10,
       registration_required = $11,
       registration_deadline = $12,
       is_public = $13,
       tags = $14,
       image_url = $15,
       requirements = $16,
       contact_email = $17,
       contact_phone = $18,
       campus = $19,
       status = CASE WHEN status = 'rejected' THEN 'pending' ELSE status END,
       rejection_reason = CASE WHEN status = 'rejected' THEN NULL ELSE rejection_reason END,
       synced = CASE WHEN status = 'rejected' THEN false ELSE synced END,
       synced_at = CASE WHEN status = 'rejected' THEN NULL ELSE synced_at END,
       sync_key = CASE WHEN status = 'rejected' THEN $20 ELSE sync_key END,
       sync_halted = CASE WHEN status = 'rejected' THEN false ELSE sync_halted END,
       next_sync_at = CASE WHEN status = 'rejected' THEN NULL ELSE next_sync_at END,
       last_sync_error = CASE WHEN status = 'rejected' THEN NULL ELSE last_sync_error END,
       updated_at = now()
 WHERE id = $1
   AND status <> 'cancelled'
RETURNING `+eventColumns,
		id, params.Title, params.Description, params.EventType, params.StartDate, params.EndDate,
		params.StartTime, params.EndTime, params.Location, params.MaxParticipants,
		params.RegistrationRequired, params.RegistrationDeadline, params.IsPublic,
		tags, params.ImageURL, params.Requirements, params.ContactEmail, params.ContactPhone,
		params.Campus, params.ResubmitSyncKey,
	)
	event, err = scanEvent(row)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update event %d: %w", id, err)
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, events.ErrNotFound
	}
	return nil, events.ErrInvalidTransition
}

func (r *EventRepository) ListSyncCandidates(ctx context.Context, now time.Time, limit int) (list []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_sync_candidates", start, err) }(time.Now())

	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE synced = false
   AND sync_halted = false
   AND status NOT IN ('draft', 'cancelled')
   AND (next_sync_at IS NULL OR next_sync_at <= $1)
   AND (sync_claimed_until IS NULL OR sync_claimed_until <= $1)
 ORDER BY created_at, id
 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync candidates: %w", err)
	}
	return collectEvents(rows)
}

// ClaimSyncAttempt takes the record for one attempt. The lease keeps every
// other caller out until the attempt reports back or leaseUntil passes.
func (r *EventRepository) ClaimSyncAttempt(ctx context.Context, id int64, expectedAttempts int, at, leaseUntil time.Time) (claimed bool, err error) {
	defer func(start time.Time) { metrics.RecordQuery("claim_sync_attempt", start, err) }(time.Now())

	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET sync_attempts = sync_attempts + 1,
       last_sync_attempt_at = $3,
       sync_claimed_until = $4
 WHERE id = $1
   AND synced = false
   AND sync_attempts = $2
   AND (sync_claimed_until IS NULL OR sync_claimed_until <= $3)`, id, expectedAttempts, at, leaseUntil)
	if err != nil {
		return false, fmt.Errorf("claim sync attempt for event %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) MarkSynced(ctx context.Context, id int64, remoteID string, at time.Time) (changed bool, err error) {
	defer func(start time.Time) { metrics.RecordQuery("mark_synced", start, err) }(time.Now())

	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET synced = true,
       synced_at = $3,
       remote_id = NULLIF($2::text, ''),
       next_sync_at = NULL,
       last_sync_error = NULL,
       sync_halted = false,
       sync_claimed_until = NULL
 WHERE id = $1
   AND synced = false`, id, remoteID, at)
	if err != nil {
		return false, fmt.Errorf("mark event %d synced: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) MarkSyncFailed(ctx context.Context, id int64, failure adminsync.SyncFailure) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("mark_sync_failed", start, err) }(time.Now())

	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET last_sync_error = $2,
       next_sync_at = $3,
       sync_halted = $4,
       sync_claimed_until = NULL
 WHERE id = $1
   AND synced = false`, id, failure.Message, failure.NextAttemptAt, failure.Halt)
	if err != nil {
		return fmt.Errorf("record sync failure for event %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or synced concurrently; only the former is an error.
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return events.ErrNotFound
		}
	}
	return nil
}

// ApplyRemoteStatus records an admin portal decision. The record counts as
// synced from here on: the admin portal evidently holds it. A locally
// cancelled event keeps its status unless the decision is also "cancelled".
func (r *EventRepository) ApplyRemoteStatus(ctx context.Context, update adminsync.StatusUpdate) (event *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("apply_remote_status", start, err) }(time.Now())

	row := r.queryer().QueryRow(ctx, `
UPDATE events
   SET status = $2::text,
       admin_notes = NULLIF($3::text, ''),
       rejection_reason = CASE WHEN $2::text = 'rejected' THEN NULLIF($3::text, '') ELSE rejection_reason END,
       approved_at = CASE WHEN $2::text = 'approved' THEN $4::timestamptz ELSE approved_at END,
       is_active = CASE WHEN $2::text = 'cancelled' THEN false ELSE is_active END,
       synced = true,
       synced_at = COALESCE(synced_at, $4::timestamptz),
       next_sync_at = NULL,
       sync_halted = false,
       sync_claimed_until = NULL,
       updated_at = now()
 WHERE id = $1
   AND (status <> 'cancelled' OR $2::text = 'cancelled')
RETURNING `+eventColumns,
		update.TeacherPortalID, string(update.Status), update.Note, update.At,
	)
	event, err = scanEvent(row)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apply remote status to event %d: %w", update.TeacherPortalID, err)
	}

	exists, err := r.exists(ctx, update.TeacherPortalID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, events.ErrNotFound
	}
	return nil, events.ErrInvalidTransition
}

func (r *EventRepository) CountUnsynced(ctx context.Context) (count int64, err error) {
	defer func(start time.Time) { metrics.RecordQuery("count_unsynced", start, err) }(time.Now())

	err = r.queryer().QueryRow(ctx, `SELECT count(*) FROM events WHERE synced = false AND status NOT IN ('draft', 'cancelled')`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unsynced events: %w", err)
	}
	return count, nil
}

func (r *EventRepository) exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.queryer().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check event %d: %w", id, err)
	}
	return exists, nil
}

type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *EventRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		event  events.Event
		status string
	)
	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &event.EventType,
		&event.StartDate, &event.EndDate, &event.StartTime, &event.EndTime,
		&event.Location, &event.MaxParticipants, &event.RegistrationRequired,
		&event.RegistrationDeadline, &event.IsPublic, &event.Tags, &event.ImageURL,
		&event.Requirements, &event.ContactEmail, &event.ContactPhone, &event.Campus,
		&status, &event.CreatedBy, &event.CreatedByName, &event.CreatedByEmail,
		&event.AdminNotes, &event.RejectionReason, &event.ApprovedAt, &event.IsActive,
		&event.CreatedAt, &event.UpdatedAt,
		&event.Sync.Synced, &event.Sync.SyncedAt, &event.Sync.RemoteID, &event.Sync.Key,
		&event.Sync.Attempts, &event.Sync.LastAttemptAt, &event.Sync.NextAttemptAt,
		&event.Sync.LastError, &event.Sync.Halted, &event.Sync.ClaimedUntil,
	)
	if err != nil {
		return nil, err
	}
	event.Status = events.Status(status)
	if event.Tags == nil {
		event.Tags = []string{}
	}
	return &event, nil
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
	defer rows.Close()

	list := make([]events.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}
