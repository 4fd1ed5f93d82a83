package jobs

import (
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetryPolicy(t *testing.T) {
	policy := NewRetryPolicy()
	require.NotNil(t, policy)

	reconcile := policy.ByKind[JobKindReconcileAdminSync]
	assert.Equal(t, ReconcileMaxAttempts, reconcile.MaxAttempts)
	assert.Zero(t, reconcile.BaseDelay)

	notification := policy.ByKind[JobKindStatusNotification]
	assert.Equal(t, StatusNotificationMaxAttempts, notification.MaxAttempts)
	assert.Equal(t, time.Minute, notification.BaseDelay)
	assert.Equal(t, time.Hour, notification.MaxDelay)
}

func TestRetryPolicy_NextRetry(t *testing.T) {
	policy := NewRetryPolicy()
	attemptedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		kind    string
		attempt int
		want    time.Duration
	}{
		{"notification first attempt", JobKindStatusNotification, 1, time.Minute},
		{"notification second attempt", JobKindStatusNotification, 2, 2 * time.Minute},
		{"notification fourth attempt", JobKindStatusNotification, 4, 8 * time.Minute},
		{"notification capped", JobKindStatusNotification, 10, time.Hour},
		{"zero attempt treated as first", JobKindStatusNotification, 0, time.Minute},
		{"unknown kind uses default", "something_else", 2, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := policy.NextRetry(&rivertype.JobRow{
				Kind:        tt.kind,
				Attempt:     tt.attempt,
				AttemptedAt: &attemptedAt,
			})
			assert.Equal(t, tt.want, next.Sub(attemptedAt))
		})
	}
}

func TestRetryPolicy_NoDelayKind(t *testing.T) {
	before := time.Now()
	next := NewRetryPolicy().NextRetry(&rivertype.JobRow{Kind: JobKindReconcileAdminSync, Attempt: 1})
	assert.WithinDuration(t, before, next, time.Second)
}

func TestInsertOptsForKind(t *testing.T) {
	reconcile := InsertOptsForKind(JobKindReconcileAdminSync)
	assert.Equal(t, ReconcileMaxAttempts, reconcile.MaxAttempts)
	assert.Equal(t, QueueAdminSync, reconcile.Queue)

	notification := InsertOptsForKind(JobKindStatusNotification)
	assert.Equal(t, StatusNotificationMaxAttempts, notification.MaxAttempts)
	assert.Empty(t, notification.Queue)
}

func TestNewPeriodicJobs(t *testing.T) {
	jobs, err := NewPeriodicJobs("*/5 * * * *")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.NotNil(t, jobs[0])

	_, err = NewPeriodicJobs("every five minutes")
	assert.Error(t, err)
}

func TestNewClientConfig(t *testing.T) {
	workers := NewWorkers(WorkerDeps{})
	cfg := NewClientConfig(workers, nil, nil, nil)

	assert.Equal(t, StatusNotificationMaxAttempts, cfg.MaxAttempts)
	assert.Contains(t, cfg.Queues, river.QueueDefault)
	assert.Equal(t, 1, cfg.Queues[QueueAdminSync].MaxWorkers)
	assert.Nil(t, cfg.ErrorHandler)
}
