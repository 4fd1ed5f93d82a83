package events

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]*Event
	created []CreateParams
	err     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, events: map[int64]*Event{}}
}

func (r *fakeRepo) Create(_ context.Context, params CreateParams) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.created = append(r.created, params)
	event := &Event{
		ID:        r.nextID,
		Title:     params.Title,
		EventType: params.EventType,
		StartDate: params.StartDate,
		Location:  params.Location,
		Tags:      params.Tags,
		Campus:    params.Campus,
		Status:    params.Status,
		IsPublic:  params.IsPublic,
		IsActive:  true,
		Sync:      SyncState{Key: params.SyncKey},
	}
	r.events[event.ID] = event
	r.nextID++
	copied := *event
	return &copied, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (r *fakeRepo) List(_ context.Context, _ Filters, pagination Pagination) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, event := range r.events {
		if len(out) == pagination.Limit {
			break
		}
		out = append(out, *event)
	}
	return out, nil
}

func (r *fakeRepo) Transition(_ context.Context, id int64, params TransitionParams) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	allowed := false
	for _, from := range params.From {
		if event.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}
	event.Status = params.To
	if params.Deactivate {
		event.IsActive = false
	}
	copied := *event
	return &copied, nil
}

func (r *fakeRepo) Update(_ context.Context, id int64, params UpdateParams) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	if event.Status == StatusCancelled {
		return nil, ErrInvalidTransition
	}
	event.Title = params.Title
	event.Location = params.Location
	event.EventType = params.EventType
	if event.Status == StatusRejected {
		event.Status = StatusPending
		event.RejectionReason = nil
		event.Sync.Synced = false
		event.Sync.Key = params.ResubmitSyncKey
	}
	copied := *event
	return &copied, nil
}

func (r *fakeRepo) set(id int64, mutate func(*Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(r.events[id])
}

type recordingHook struct {
	mu      sync.Mutex
	events  []Event
	ctxErrs []error
	release chan struct{}
}

func (h *recordingHook) OnEventCreated(ctx context.Context, event Event) {
	if h.release != nil {
		<-h.release
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
}

func (h *recordingHook) calls() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

func validInput() CreateInput {
	return CreateInput{
		Title:       "Hackathon",
		Description: "24 hour build sprint",
		EventType:   "competition",
		StartDate:   "2025-03-01",
		Location:    "Lab 3",
	}
}

func waitHooks(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
}

func TestCreate_PersistsThenFiresHook(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	event, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.ID)
	assert.Equal(t, StatusPending, event.Status)
	assert.Equal(t, "dubai", event.Campus)
	assert.True(t, event.IsPublic)
	assert.NotEmpty(t, event.Sync.Key)
	assert.Equal(t, []string{}, event.Tags)

	waitHooks(t, svc)
	calls := hook.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(1), calls[0].ID)
}

func TestCreate_ReturnsBeforeHookCompletes(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{release: make(chan struct{})}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	event, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Empty(t, hook.calls())

	close(hook.release)
	waitHooks(t, svc)
	assert.Len(t, hook.calls(), 1)
}

func TestCreate_HookContextSurvivesRequestCancellation(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{release: make(chan struct{})}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	cancel()

	close(hook.release)
	waitHooks(t, svc)
	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.ctxErrs, 1)
	assert.NoError(t, hook.ctxErrs[0])
}

func TestCreate_DraftDoesNotFireHook(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	input := validInput()
	input.Draft = true
	event, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, event.Status)

	waitHooks(t, svc)
	assert.Empty(t, hook.calls())
}

func TestCreate_AutoApprove(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, ServiceConfig{AutoApprove: true, DefaultCampus: "goa"}, zerolog.Nop())

	event, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, event.Status)
	assert.Equal(t, "goa", event.Campus)
}

func TestCreate_SanitizesTextFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, ServiceConfig{}, zerolog.Nop())

	input := validInput()
	input.Title = `Hackathon <script>alert(1)</script>`
	input.Tags = []string{"<b>ai</b>", "robotics"}
	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "Hackathon", repo.created[0].Title)
	assert.Equal(t, []string{"ai", "robotics"}, repo.created[0].Tags)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"missing title", func(in *CreateInput) { in.Title = "" }, "title"},
		{"unknown event type", func(in *CreateInput) { in.EventType = "party" }, "eventType"},
		{"bad start date", func(in *CreateInput) { in.StartDate = "01-03-2025" }, "startDate"},
		{"bad contact email", func(in *CreateInput) { email := "nope"; in.ContactEmail = &email }, "contactEmail"},
		{"unknown campus", func(in *CreateInput) { in.Campus = "mars" }, "campus"},
		{"end before start", func(in *CreateInput) { in.EndDate = "2025-02-01" }, "endDate"},
		{"title only markup", func(in *CreateInput) { in.Title = "<b></b>" }, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc := NewService(repo, nil, ServiceConfig{}, zerolog.Nop())

			input := validInput()
			tt.mutate(&input)
			_, err := svc.Create(context.Background(), input)

			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
			assert.Empty(t, repo.created)
		})
	}
}

func TestCreate_StoreFailureSkipsHook(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection reset")
	hook := &recordingHook{}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	_, err := svc.Create(context.Background(), validInput())
	require.Error(t, err)

	waitHooks(t, svc)
	assert.Empty(t, hook.calls())
}

func TestSubmit_PromotesDraftAndFiresHook(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	input := validInput()
	input.Draft = true
	draft, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, submitted.Status)

	waitHooks(t, svc)
	require.Len(t, hook.calls(), 1)

	_, err = svc.Submit(context.Background(), draft.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, ServiceConfig{}, zerolog.Nop())

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.IsActive)

	_, err = svc.Cancel(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Cancel(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_RejectedEventIsResubmitted(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	waitHooks(t, svc)
	reason := "clashes with midterms"
	repo.set(created.ID, func(e *Event) {
		e.Status = StatusRejected
		e.RejectionReason = &reason
		e.Sync.Synced = true
	})

	input := validInput()
	input.Title = "Hackathon (rescheduled)"
	updated, err := svc.Update(context.Background(), created.ID, input)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	assert.Equal(t, "Hackathon (rescheduled)", updated.Title)
	assert.Nil(t, updated.RejectionReason)
	assert.False(t, updated.Sync.Synced)
	assert.NotEqual(t, created.Sync.Key, updated.Sync.Key, "a resubmission needs a new idempotency key")

	waitHooks(t, svc)
	calls := hook.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, created.ID, calls[1].ID)
}

func TestUpdate_SyncedEventStaysLocal(t *testing.T) {
	repo := newFakeRepo()
	hook := &recordingHook{}
	svc := NewService(repo, hook, ServiceConfig{}, zerolog.Nop())

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	waitHooks(t, svc)
	repo.set(created.ID, func(e *Event) {
		e.Status = StatusApproved
		e.Sync.Synced = true
	})

	updated, err := svc.Update(context.Background(), created.ID, validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)

	waitHooks(t, svc)
	assert.Len(t, hook.calls(), 1)
}

func TestUpdate_Errors(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, ServiceConfig{}, zerolog.Nop())

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	bad := validInput()
	bad.EventType = "party"
	_, err = svc.Update(context.Background(), created.ID, bad)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "eventType")

	_, err = svc.Update(context.Background(), 999, validInput())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), created.ID, validInput())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestParseFilters(t *testing.T) {
	filters, pagination, err := ParseFilters(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 50, pagination.Limit)
	assert.Empty(t, filters.Status)
	assert.Nil(t, filters.Synced)

	values := url.Values{}
	values.Set("status", " Approved ")
	values.Set("campus", "pilani")
	values.Set("synced", "false")
	values.Set("limit", "10")
	filters, pagination, err = ParseFilters(values)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, filters.Status)
	assert.Equal(t, "pilani", filters.Campus)
	require.NotNil(t, filters.Synced)
	assert.False(t, *filters.Synced)
	assert.Equal(t, 10, pagination.Limit)
}

func TestParseFiltersRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value, field string
	}{
		{"status", "archived", "status"},
		{"campus", "mars", "campus"},
		{"synced", "maybe", "synced"},
		{"limit", "51", "limit"},
		{"limit", "ten", "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			values := url.Values{}
			values.Set(tt.key, tt.value)
			_, _, err := ParseFilters(values)

			var ferr FilterError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, tt.field, ferr.Field)
		})
	}
}
