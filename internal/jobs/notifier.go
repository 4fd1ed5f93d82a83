package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/campus-events/server/internal/domain/events"
)

// Inserter is the part of *river.Client the enqueuers use.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// StatusNotifier queues a status notification job for every applied admin
// portal decision.
type StatusNotifier struct {
	client Inserter
}

func NewStatusNotifier(client Inserter) *StatusNotifier {
	return &StatusNotifier{client: client}
}

func (n *StatusNotifier) NotifyStatusChange(ctx context.Context, event events.Event) error {
	args := StatusNotificationArgs{
		EventID: event.ID,
		Status:  string(event.Status),
	}
	switch {
	case event.RejectionReason != nil && event.Status == events.StatusRejected:
		args.Note = *event.RejectionReason
	case event.AdminNotes != nil:
		args.Note = *event.AdminNotes
	}

	opts := InsertOptsForKind(JobKindStatusNotification)
	if _, err := n.client.Insert(ctx, args, &opts); err != nil {
		return fmt.Errorf("enqueue status notification for event %d: %w", event.ID, err)
	}
	return nil
}

// EnqueueReconcile queues an out-of-schedule reconciliation pass.
func EnqueueReconcile(ctx context.Context, client Inserter) error {
	opts := InsertOptsForKind(JobKindReconcileAdminSync)
	if _, err := client.Insert(ctx, ReconcileArgs{}, &opts); err != nil {
		return fmt.Errorf("enqueue reconcile: %w", err)
	}
	return nil
}
