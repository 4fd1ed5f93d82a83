package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-events/server/internal/metrics"
)

const checkTimeout = 2 * time.Second

// HealthCheck is the /health response body.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// RowQuerier is satisfied by *pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RemoteProbe reports admin portal liveness.
type RemoteProbe interface {
	Enabled() bool
	CheckHealth(ctx context.Context) bool
}

type HealthChecker struct {
	db        RowQuerier
	remote    RemoteProbe
	jobQueue  bool
	version   string
	gitCommit string
}

// NewHealthChecker builds the checker. jobQueue reports whether a River client
// is running in this process.
func NewHealthChecker(db RowQuerier, remote RemoteProbe, jobQueue bool, version, gitCommit string) *HealthChecker {
	return &HealthChecker{db: db, remote: remote, jobQueue: jobQueue, version: version, gitCommit: gitCommit}
}

// Health runs every check. The admin portal being down degrades the server
// but never fails it; events are still stored locally.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":     h.checkDatabase(ctx),
			"migrations":   h.checkMigrations(ctx),
			"admin_portal": h.checkAdminPortal(ctx),
			"job_queue":    h.checkJobQueue(ctx),
		}

		overall := "healthy"
		statusCode := http.StatusOK
		for name, check := range checks {
			metrics.HealthCheckStatus.WithLabelValues(name).Set(checkValue(check.Status))
			metrics.HealthCheckLatency.WithLabelValues(name).Set(float64(check.LatencyMs))
			switch {
			case check.Status == "fail":
				overall = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			case check.Status == "warn" && overall == "healthy":
				overall = "degraded"
			}
		}
		metrics.HealthStatus.Set(overallValue(overall))

		writeJSON(w, statusCode, HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database pool not initialized"}
	}
	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var one int
	err := h.db.QueryRow(dbCtx, "SELECT 1").Scan(&one)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database query failed"
		if dbCtx.Err() == context.DeadlineExceeded {
			message = "Database query timed out after 2 seconds"
		} else if strings.Contains(err.Error(), "connection refused") {
			message = "Database connection refused"
		}
		return CheckResult{
			Status:    "fail",
			Message:   message,
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	return CheckResult{Status: "pass", Message: "PostgreSQL connection successful", LatencyMs: latency}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database pool not initialized"}
	}
	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var version int64
	var dirty bool
	err := h.db.QueryRow(migCtx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Failed to query migration version"
		if strings.Contains(err.Error(), "does not exist") {
			message = "Migrations table not found"
		}
		return CheckResult{
			Status:    "fail",
			Message:   message,
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state",
			LatencyMs: latency,
			Details:   map[string]any{"version": version, "dirty": true},
		}
	}
	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version},
	}
}

func (h *HealthChecker) checkAdminPortal(ctx context.Context) CheckResult {
	if h.remote == nil || !h.remote.Enabled() {
		return CheckResult{Status: "pass", Message: "Admin sync disabled"}
	}
	start := time.Now()
	healthy := h.remote.CheckHealth(ctx)
	latency := time.Since(start).Milliseconds()
	if !healthy {
		return CheckResult{
			Status:    "warn",
			Message:   "Admin portal unreachable, events will be reconciled later",
			LatencyMs: latency,
		}
	}
	return CheckResult{Status: "pass", Message: "Admin portal healthy", LatencyMs: latency}
}

func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	if !h.jobQueue || h.db == nil {
		return CheckResult{Status: "warn", Message: "Job queue not running; reconciliation runs only on demand"}
	}
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var activeJobs int64
	err := h.db.QueryRow(jobCtx, `SELECT COUNT(*) FROM river_job WHERE state = ANY($1)`, []string{"available", "running"}).Scan(&activeJobs)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to query job queue",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	return CheckResult{
		Status:    "pass",
		Message:   "River job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"active_jobs": activeJobs},
	}
}

func checkValue(status string) float64 {
	switch status {
	case "pass":
		return 2
	case "warn":
		return 1
	default:
		return 0
	}
}

func overallValue(status string) float64 {
	switch status {
	case "healthy":
		return 2
	case "degraded":
		return 1
	default:
		return 0
	}
}

// Healthz is a liveness probe.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

// Readyz reports ready once the pool answers a ping.
func Readyz(db RowQuerier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			respondHealth(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()
		var one int
		if err := db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			respondHealth(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		respondHealth(w, http.StatusOK, "ready")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
