package adminsync

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/campus-events/server/internal/domain/events"
)

// memoryStore mirrors the conditional updates of the postgres repository.
type memoryStore struct {
	mu       sync.Mutex
	events   map[int64]*events.Event
	failures map[int64][]SyncFailure
	calls    int
}

func newMemoryStore(list ...events.Event) *memoryStore {
	s := &memoryStore{events: map[int64]*events.Event{}, failures: map[int64][]SyncFailure{}}
	for i := range list {
		e := list[i]
		s.events[e.ID] = &e
	}
	return s
}

func (s *memoryStore) get(id int64) events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *memoryStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memoryStore) GetByID(_ context.Context, id int64) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	e, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *memoryStore) ListSyncCandidates(_ context.Context, now time.Time, limit int) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var out []events.Event
	for _, e := range s.events {
		if e.Sync.Synced || e.Sync.Halted || e.Status == events.StatusDraft || e.Status == events.StatusCancelled {
			continue
		}
		if e.Sync.NextAttemptAt != nil && e.Sync.NextAttemptAt.After(now) {
			continue
		}
		if e.Sync.ClaimedUntil != nil && e.Sync.ClaimedUntil.After(now) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ClaimSyncAttempt(_ context.Context, id int64, expectedAttempts int, at, leaseUntil time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	e, ok := s.events[id]
	if !ok || e.Sync.Synced || e.Sync.Attempts != expectedAttempts {
		return false, nil
	}
	if e.Sync.ClaimedUntil != nil && e.Sync.ClaimedUntil.After(at) {
		return false, nil
	}
	e.Sync.Attempts++
	e.Sync.LastAttemptAt = &at
	e.Sync.ClaimedUntil = &leaseUntil
	return true, nil
}

func (s *memoryStore) MarkSynced(_ context.Context, id int64, remoteID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	e, ok := s.events[id]
	if !ok || e.Sync.Synced {
		return false, nil
	}
	e.Sync.Synced = true
	e.Sync.SyncedAt = &at
	if remoteID != "" {
		e.Sync.RemoteID = &remoteID
	}
	e.Sync.NextAttemptAt = nil
	e.Sync.LastError = nil
	e.Sync.ClaimedUntil = nil
	return true, nil
}

func (s *memoryStore) MarkSyncFailed(_ context.Context, id int64, failure SyncFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	e, ok := s.events[id]
	if !ok {
		return events.ErrNotFound
	}
	msg := failure.Message
	e.Sync.LastError = &msg
	e.Sync.NextAttemptAt = failure.NextAttemptAt
	e.Sync.Halted = failure.Halt
	e.Sync.ClaimedUntil = nil
	s.failures[id] = append(s.failures[id], failure)
	return nil
}

func (s *memoryStore) ApplyRemoteStatus(_ context.Context, update StatusUpdate) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	e, ok := s.events[update.TeacherPortalID]
	if !ok {
		return nil, events.ErrNotFound
	}
	if e.Status == events.StatusCancelled && update.Status != events.StatusCancelled {
		return nil, events.ErrInvalidTransition
	}
	e.Status = update.Status
	note := update.Note
	e.AdminNotes = &note
	if update.Status == events.StatusRejected {
		e.RejectionReason = &note
	}
	if update.Status == events.StatusApproved {
		e.ApprovedAt = &update.At
	}
	if update.Status == events.StatusCancelled {
		e.IsActive = false
	}
	e.Sync.Synced = true
	e.Sync.ClaimedUntil = nil
	copied := *e
	return &copied, nil
}

func (s *memoryStore) CountUnsynced(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var n int64
	for _, e := range s.events {
		if !e.Sync.Synced && e.Status != events.StatusDraft && e.Status != events.StatusCancelled {
			n++
		}
	}
	return n, nil
}

type fakeTransport struct {
	mu       sync.Mutex
	healthy  bool
	pushErr  func(RemoteEvent) error
	pushed   []RemoteEvent
	pushes   int
	healthCk int
}

func (t *fakeTransport) PushEvent(_ context.Context, event RemoteEvent) (*RemoteAck, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pushes++
	if t.pushErr != nil {
		if err := t.pushErr(event); err != nil {
			return nil, err
		}
	}
	t.pushed = append(t.pushed, event)
	return &RemoteAck{ID: "remote-" + strconv.FormatInt(event.TeacherPortalID, 10), Status: "pending"}, nil
}

func (t *fakeTransport) CheckHealth(context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthCk++
	return t.healthy
}

func (t *fakeTransport) pushCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pushes
}

func (t *fakeTransport) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pushes + t.healthCk
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (n *recordingNotifier) NotifyStatusChange(_ context.Context, event events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func pendingEvent(id int64) events.Event {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return events.Event{
		ID:        id,
		Title:     "Hackathon",
		EventType: "competition",
		StartDate: &start,
		Location:  "Lab 3",
		Campus:    "dubai",
		Status:    events.StatusPending,
		IsPublic:  true,
		IsActive:  true,
		Sync:      events.SyncState{Key: "01JNB5Q8R6X3H7Y2K9M4T0VWZC"},
	}
}

// gatedTransport holds every push until release is closed. started closes
// when the first push arrives.
type gatedTransport struct {
	fakeTransport
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{
		fakeTransport: fakeTransport{healthy: true},
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (t *gatedTransport) PushEvent(ctx context.Context, event RemoteEvent) (*RemoteAck, error) {
	t.once.Do(func() { close(t.started) })
	<-t.release
	return t.fakeTransport.PushEvent(ctx, event)
}
