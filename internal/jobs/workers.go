package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/email"
	"github.com/campus-events/server/internal/metrics"
)

const (
	reconcileTimeout    = 10 * time.Minute
	notificationTimeout = 30 * time.Second
)

// ReconcileArgs triggers one admin sync reconciliation pass.
type ReconcileArgs struct{}

func (ReconcileArgs) Kind() string { return JobKindReconcileAdminSync }

// Reconciler runs a reconciliation pass.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (adminsync.Report, error)
}

// ReconcilerFunc adapts a function to Reconciler.
type ReconcilerFunc func(ctx context.Context) (adminsync.Report, error)

func (f ReconcilerFunc) ReconcileAll(ctx context.Context) (adminsync.Report, error) {
	return f(ctx)
}

type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	Reconciler Reconciler
	Logger     *slog.Logger
}

func (ReconcileWorker) Kind() string { return JobKindReconcileAdminSync }

func (ReconcileWorker) Timeout(*river.Job[ReconcileArgs]) time.Duration { return reconcileTimeout }

func (w ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileArgs]) error {
	if w.Reconciler == nil {
		return fmt.Errorf("reconciler not configured")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report, err := w.Reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile admin sync: %w", err)
	}
	logger.InfoContext(ctx, "reconcile job finished",
		"job_id", job.ID,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"remote_down", report.RemoteDown,
		"locked", report.Locked,
	)
	return nil
}

// StatusNotificationArgs tells the creating teacher about a remote decision.
// Status and note are captured at enqueue time.
type StatusNotificationArgs struct {
	EventID int64  `json:"event_id"`
	Status  string `json:"status"`
	Note    string `json:"note,omitempty"`
}

func (StatusNotificationArgs) Kind() string { return JobKindStatusNotification }

type EventLoader interface {
	GetByID(ctx context.Context, id int64) (*events.Event, error)
}

type Mailer interface {
	SendStatusChange(ctx context.Context, to string, data email.StatusChangeData) error
}

type StatusNotificationWorker struct {
	river.WorkerDefaults[StatusNotificationArgs]
	Events  EventLoader
	Mailer  Mailer
	BaseURL string
	Logger  *slog.Logger
}

func (StatusNotificationWorker) Kind() string { return JobKindStatusNotification }

func (StatusNotificationWorker) Timeout(*river.Job[StatusNotificationArgs]) time.Duration {
	return notificationTimeout
}

func (w StatusNotificationWorker) Work(ctx context.Context, job *river.Job[StatusNotificationArgs]) error {
	if w.Events == nil || w.Mailer == nil {
		return fmt.Errorf("status notification worker not configured")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	event, err := w.Events.GetByID(ctx, job.Args.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			metrics.StatusNotificationsTotal.WithLabelValues("skipped").Inc()
			return river.JobCancel(fmt.Errorf("event %d no longer exists: %w", job.Args.EventID, err))
		}
		metrics.StatusNotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("load event %d: %w", job.Args.EventID, err)
	}
	if event.CreatedByEmail == "" {
		metrics.StatusNotificationsTotal.WithLabelValues("skipped").Inc()
		logger.InfoContext(ctx, "event has no creator email, skipping notification", "event_id", event.ID)
		return nil
	}

	data := email.StatusChangeData{
		RecipientName: event.CreatedByName,
		Title:         event.Title,
		Status:        job.Args.Status,
		Note:          job.Args.Note,
	}
	if event.StartDate != nil {
		data.EventDate = event.StartDate.Format("2006-01-02")
	}
	if w.BaseURL != "" {
		data.EventURL = fmt.Sprintf("%s/api/events/%d", w.BaseURL, event.ID)
	}

	if err := w.Mailer.SendStatusChange(ctx, event.CreatedByEmail, data); err != nil {
		metrics.StatusNotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("send status notification for event %d: %w", event.ID, err)
	}
	metrics.StatusNotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

// WorkerDeps carries what the workers need.
type WorkerDeps struct {
	Reconciler Reconciler
	Events     EventLoader
	Mailer     Mailer
	BaseURL    string
	Logger     *slog.Logger
}

func NewWorkers(deps WorkerDeps) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[ReconcileArgs](workers, ReconcileWorker{
		Reconciler: deps.Reconciler,
		Logger:     deps.Logger,
	})
	river.AddWorker[StatusNotificationArgs](workers, StatusNotificationWorker{
		Events:  deps.Events,
		Mailer:  deps.Mailer,
		BaseURL: deps.BaseURL,
		Logger:  deps.Logger,
	})
	return workers
}
