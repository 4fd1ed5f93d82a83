package handlers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/domain/events"
)

// eventStore backs both the event service and the orchestrator in tests.
type eventStore struct {
	mu       sync.Mutex
	nextID   int64
	events   map[int64]*events.Event
	failures []adminsync.SyncFailure
}

func newEventStore() *eventStore {
	return &eventStore{nextID: 1, events: map[int64]*events.Event{}}
}

func (s *eventStore) Create(_ context.Context, params events.CreateParams) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	event := &events.Event{
		ID:             s.nextID,
		Title:          params.Title,
		Description:    params.Description,
		EventType:      params.EventType,
		StartDate:      params.StartDate,
		Location:       params.Location,
		Tags:           params.Tags,
		Campus:         params.Campus,
		Status:         params.Status,
		CreatedByName:  params.CreatedByName,
		CreatedByEmail: params.CreatedByEmail,
		IsPublic:       params.IsPublic,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
		Sync:           events.SyncState{Key: params.SyncKey},
	}
	s.events[event.ID] = event
	s.nextID++
	copied := *event
	return &copied, nil
}

func (s *eventStore) put(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = &event
	if event.ID >= s.nextID {
		s.nextID = event.ID + 1
	}
}

func (s *eventStore) get(id int64) events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *eventStore) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}

func (s *eventStore) GetByID(_ context.Context, id int64) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (s *eventStore) List(_ context.Context, filters events.Filters, pagination events.Pagination) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for id := s.nextID - 1; id >= 1 && len(out) < pagination.Limit; id-- {
		event, ok := s.events[id]
		if !ok {
			continue
		}
		if filters.Status != "" && event.Status != filters.Status {
			continue
		}
		if filters.Campus != "" && event.Campus != filters.Campus {
			continue
		}
		if filters.Synced != nil && event.Sync.Synced != *filters.Synced {
			continue
		}
		out = append(out, *event)
	}
	return out, nil
}

func (s *eventStore) Transition(_ context.Context, id int64, params events.TransitionParams) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	if !slices.Contains(params.From, event.Status) {
		return nil, events.ErrInvalidTransition
	}
	event.Status = params.To
	if params.Deactivate {
		event.IsActive = false
	}
	copied := *event
	return &copied, nil
}

func (s *eventStore) Update(_ context.Context, id int64, params events.UpdateParams) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	if event.Status == events.StatusCancelled {
		return nil, events.ErrInvalidTransition
	}
	event.Title = params.Title
	event.Description = params.Description
	event.EventType = params.EventType
	event.Location = params.Location
	event.Campus = params.Campus
	if event.Status == events.StatusRejected {
		event.Status = events.StatusPending
		event.RejectionReason = nil
		event.Sync.Synced = false
		event.Sync.Key = params.ResubmitSyncKey
	}
	copied := *event
	return &copied, nil
}

func (s *eventStore) ListSyncCandidates(context.Context, time.Time, int) ([]events.Event, error) {
	return nil, nil
}

func (s *eventStore) ClaimSyncAttempt(_ context.Context, id int64, expectedAttempts int, at, leaseUntil time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok || event.Sync.Synced || event.Sync.Attempts != expectedAttempts {
		return false, nil
	}
	if event.Sync.ClaimedUntil != nil && event.Sync.ClaimedUntil.After(at) {
		return false, nil
	}
	event.Sync.Attempts++
	event.Sync.LastAttemptAt = &at
	event.Sync.ClaimedUntil = &leaseUntil
	return true, nil
}

func (s *eventStore) MarkSynced(_ context.Context, id int64, remoteID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event := s.events[id]
	if event.Sync.Synced {
		return false, nil
	}
	event.Sync.Synced = true
	event.Sync.SyncedAt = &at
	event.Sync.RemoteID = &remoteID
	event.Sync.ClaimedUntil = nil
	return true, nil
}

func (s *eventStore) MarkSyncFailed(_ context.Context, id int64, failure adminsync.SyncFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	event := s.events[id]
	event.Sync.LastError = &failure.Message
	event.Sync.NextAttemptAt = failure.NextAttemptAt
	event.Sync.Halted = failure.Halt
	event.Sync.ClaimedUntil = nil
	return nil
}

func (s *eventStore) ApplyRemoteStatus(context.Context, adminsync.StatusUpdate) (*events.Event, error) {
	return nil, events.ErrNotFound
}

func (s *eventStore) CountUnsynced(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, event := range s.events {
		if !event.Sync.Synced && event.Status != events.StatusDraft {
			n++
		}
	}
	return n, nil
}

type fakeSyncer struct {
	outcome adminsync.Outcome
	err     error
	calls   int
	trigger adminsync.Trigger
}

func (f *fakeSyncer) SyncEvent(_ context.Context, _ events.Event, trigger adminsync.Trigger) (adminsync.Outcome, error) {
	f.calls++
	f.trigger = trigger
	return f.outcome, f.err
}

type fakeApplier struct {
	err    error
	id     int64
	status string
	note   string
	calls  int
}

func (f *fakeApplier) OnRemoteStatusChanged(_ context.Context, id int64, status string, note string) error {
	f.calls++
	f.id, f.status, f.note = id, status, note
	return f.err
}

type fakeReconciler struct {
	report     adminsync.Report
	err        error
	candidates []events.Event
	runs       int
}

func (f *fakeReconciler) ReconcileAll(context.Context) (adminsync.Report, error) {
	f.runs++
	return f.report, f.err
}

func (f *fakeReconciler) Candidates(context.Context) ([]events.Event, error) {
	return f.candidates, f.err
}

type fakeStatusReader struct {
	status adminsync.SyncStatus
	err    error
}

func (f fakeStatusReader) Status(context.Context) (adminsync.SyncStatus, error) {
	return f.status, f.err
}

type hookFunc func(ctx context.Context, event events.Event)

func (f hookFunc) OnEventCreated(ctx context.Context, event events.Event) { f(ctx, event) }
