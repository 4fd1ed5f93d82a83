package handlers

import (
	"context"
	"net/http"

	"github.com/campus-events/server/internal/api/problem"
	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/domain/events"
)

type EventService interface {
	Create(ctx context.Context, input events.CreateInput) (*events.Event, error)
	Update(ctx context.Context, id int64, input events.CreateInput) (*events.Event, error)
	Submit(ctx context.Context, id int64) (*events.Event, error)
	Cancel(ctx context.Context, id int64) (*events.Event, error)
	GetByID(ctx context.Context, id int64) (*events.Event, error)
	List(ctx context.Context, filters events.Filters, pagination events.Pagination) ([]events.Event, error)
}

// EventSyncer runs a single sync attempt on demand.
type EventSyncer interface {
	SyncEvent(ctx context.Context, event events.Event, trigger adminsync.Trigger) (adminsync.Outcome, error)
}

type EventsHandler struct {
	Service EventService
	Syncer  EventSyncer
	Env     string
}

func NewEventsHandler(service EventService, sync EventSyncer, env string) *EventsHandler {
	return &EventsHandler{Service: service, Syncer: sync, Env: env}
}

type eventResponse struct {
	Event *events.Event `json:"event"`
}

type listResponse struct {
	Events []events.Event `json:"events"`
	Total  int            `json:"total"`
}

// Create stores the event and answers 201 from the local write alone; the
// admin portal push happens afterwards.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Create(r.Context(), input)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	w.Header().Set("Location", "/api/events/"+formatID(event.ID))
	writeSuccess(w, http.StatusCreated, "Event created successfully", eventResponse{Event: event})
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, pagination, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.List(r.Context(), filters, pagination)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	writeSuccess(w, http.StatusOK, "", listResponse{Events: list, Total: len(list)})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}
	writeSuccess(w, http.StatusOK, "", eventResponse{Event: event})
}

// Update edits an event. A rejected event goes back to pending and is sent to
// the admin portal again; cancelled events answer 409.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}
	var input events.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Update(r.Context(), id, input)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}
	writeSuccess(w, http.StatusOK, "Event updated successfully", eventResponse{Event: event})
}

// Submit promotes a draft to pending, which starts its first sync attempt.
func (h *EventsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Submit(r.Context(), id)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}
	writeSuccess(w, http.StatusOK, "Event submitted for approval", eventResponse{Event: event})
}

func (h *EventsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Cancel(r.Context(), id)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}
	writeSuccess(w, http.StatusOK, "Event cancelled successfully", eventResponse{Event: event})
}

type syncResponse struct {
	Outcome adminsync.Outcome `json:"outcome"`
	Event   *events.Event     `json:"event"`
}

// Sync retries delivery of one event now. A failed attempt answers 502 and
// leaves the record scheduled for reconciliation.
func (h *EventsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.Syncer == nil {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Admin sync unavailable", nil, h.Env)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeEventError(w, r, err, h.Env)
		return
	}

	outcome, err := h.Syncer.SyncEvent(r.Context(), *event, adminsync.TriggerManual)
	if outcome == adminsync.OutcomeFailed {
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstream, "Admin portal sync failed", err, h.Env)
		return
	}

	if refreshed, err := h.Service.GetByID(r.Context(), id); err == nil {
		event = refreshed
	}
	writeSuccess(w, http.StatusOK, syncMessage(outcome), syncResponse{Outcome: outcome, Event: event})
}

func syncMessage(outcome adminsync.Outcome) string {
	switch outcome {
	case adminsync.OutcomeSynced:
		return "Event sent to admin portal"
	case adminsync.OutcomeDisabled:
		return "Admin sync is disabled"
	default:
		return "Event already synced or in flight"
	}
}
