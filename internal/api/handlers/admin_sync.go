package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campus-events/server/internal/api/problem"
	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/domain/events"
)

type Reconciler interface {
	ReconcileAll(ctx context.Context) (adminsync.Report, error)
	Candidates(ctx context.Context) ([]events.Event, error)
}

type SyncStatusReader interface {
	Status(ctx context.Context) (adminsync.SyncStatus, error)
}

type AdminSyncHandler struct {
	Reconciler Reconciler
	Status     SyncStatusReader
	// Enqueue queues a background pass; nil disables ?async=true.
	Enqueue func(ctx context.Context) error
	Env     string
}

func NewAdminSyncHandler(reconciler Reconciler, status SyncStatusReader, enqueue func(ctx context.Context) error, env string) *AdminSyncHandler {
	return &AdminSyncHandler{Reconciler: reconciler, Status: status, Enqueue: enqueue, Env: env}
}

type candidatesResponse struct {
	DryRun     bool    `json:"dryRun"`
	Candidates []int64 `json:"candidates"`
}

// Reconcile runs a pass inline. ?dryRun=true lists the records a pass would
// attempt; ?async=true queues the pass and answers 202.
func (h *AdminSyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dryRun, _ := strconv.ParseBool(query.Get("dryRun"))
	async, _ := strconv.ParseBool(query.Get("async"))

	switch {
	case dryRun:
		candidates, err := h.Reconciler.Candidates(r.Context())
		if err != nil {
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
			return
		}
		ids := make([]int64, 0, len(candidates))
		for _, event := range candidates {
			ids = append(ids, event.ID)
		}
		writeSuccess(w, http.StatusOK, "", candidatesResponse{DryRun: true, Candidates: ids})

	case async:
		if h.Enqueue == nil {
			problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Job queue unavailable", nil, h.Env)
			return
		}
		if err := h.Enqueue(r.Context()); err != nil {
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
			return
		}
		writeSuccess(w, http.StatusAccepted, "Reconciliation queued", nil)

	default:
		report, err := h.Reconciler.ReconcileAll(r.Context())
		if err != nil {
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Reconciliation failed", err, h.Env)
			return
		}
		writeSuccess(w, http.StatusOK, reportMessage(report), report)
	}
}

func (h *AdminSyncHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Status.Status(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	writeSuccess(w, http.StatusOK, "", status)
}

func reportMessage(report adminsync.Report) string {
	switch {
	case report.Locked:
		return "Reconciliation already running"
	case report.RemoteDown:
		return "Admin portal unavailable, nothing attempted"
	default:
		return "Reconciliation finished"
	}
}
