package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admin portal sync metrics
var (
	// SyncPushesTotal counts pushes to the admin portal by result
	SyncPushesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pushes_total",
			Help:      "Total number of event pushes to the admin portal",
		},
		[]string{"result"}, // result: success|connection_refused|timeout|remote_rejected|unexpected
	)

	// SyncPushLatency records push round trip latency
	SyncPushLatency = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_push_latency_seconds",
			Help:      "Admin portal push latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// SyncOutcomesTotal counts single-record sync outcomes by trigger
	SyncOutcomesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_outcomes_total",
			Help:      "Total number of event sync attempts by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: create|reconcile|manual, outcome: synced|failed|skipped|disabled
	)

	// RemoteHealthChecksTotal counts admin portal liveness probes
	RemoteHealthChecksTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_health_checks_total",
			Help:      "Total number of admin portal health probes",
		},
		[]string{"result"}, // result: up|down
	)

	// RemoteStatusUpdatesTotal counts status changes received from the admin portal
	RemoteStatusUpdatesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_status_updates_total",
			Help:      "Total number of status updates received from the admin portal",
		},
		[]string{"status", "result"}, // result: applied|not_found|invalid|error
	)

	// ReconcileRunsTotal counts reconciliation passes by result
	ReconcileRunsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Total number of reconciliation passes",
		},
		[]string{"result"}, // result: completed|remote_down|locked|disabled|error
	)

	// ReconcileRecordsTotal counts records handled by reconciliation
	ReconcileRecordsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_records_total",
			Help:      "Total number of records processed by reconciliation",
		},
		[]string{"result"}, // result: succeeded|failed|skipped
	)

	// ReconcileDuration records the wall time of a reconciliation pass
	ReconcileDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// UnsyncedEvents is the number of events not yet held by the admin portal
	UnsyncedEvents = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsynced_events",
			Help:      "Number of local events not yet synced to the admin portal",
		},
	)

	// StatusNotificationsTotal counts status-change emails
	StatusNotificationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_notifications_total",
			Help:      "Total number of status change notifications",
		},
		[]string{"result"}, // result: sent|skipped|error
	)
)
