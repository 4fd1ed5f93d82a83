package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/campus-events/server/internal/api/handlers"
	"github.com/campus-events/server/internal/api/middleware"
	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/metrics"
)

// RouterDeps are the services the HTTP surface is built from. Enqueue and
// JWT may be nil; the routes that need them then answer 503 or 401.
type RouterDeps struct {
	Events       handlers.EventService
	Sync         SyncService
	Reconciler   handlers.Reconciler
	DB           handlers.RowQuerier
	JWT          *auth.JWTManager
	Enqueue      func(ctx context.Context) error
	JobQueue     bool
	Environment  string
	RequireHTTPS bool
	Version      string
	GitCommit    string
	Logger       zerolog.Logger
}

// SyncService is the orchestrator surface the HTTP layer uses.
type SyncService interface {
	handlers.EventSyncer
	handlers.StatusApplier
	handlers.SyncStatusReader
	handlers.RemoteProbe
}

func NewRouter(deps RouterDeps) http.Handler {
	env := deps.Environment

	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Sync, env)
	webhooksHandler := handlers.NewWebhooksHandler(deps.Sync, env)
	adminSyncHandler := handlers.NewAdminSyncHandler(deps.Reconciler, deps.Sync, deps.Enqueue, env)
	healthChecker := handlers.NewHealthChecker(deps.DB, deps.Sync, deps.JobQueue, deps.Version, deps.GitCommit)

	adminPortalOnly := middleware.RequireRoles(deps.JWT, env, auth.RoleAdminPortal)
	operators := middleware.RequireRoles(deps.JWT, env, auth.RoleAdminPortal, auth.RoleOperator)
	webhookBody := middleware.RequestSize(middleware.WebhookMaxBodySize)

	mux := http.NewServeMux()
	mux.Handle("GET /health", healthChecker.Health())
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", handlers.Readyz(deps.DB))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /api/events", eventsHandler.Create)
	mux.HandleFunc("GET /api/events", eventsHandler.List)
	mux.HandleFunc("GET /api/events/{id}", eventsHandler.Get)
	mux.HandleFunc("PUT /api/events/{id}", eventsHandler.Update)
	mux.HandleFunc("DELETE /api/events/{id}", eventsHandler.Cancel)
	mux.HandleFunc("POST /api/events/{id}/submit", eventsHandler.Submit)
	mux.HandleFunc("POST /api/events/{id}/sync", eventsHandler.Sync)

	mux.Handle("POST /api/webhooks/admin/event-status", webhookBody(adminPortalOnly(http.HandlerFunc(webhooksHandler.EventStatus))))

	mux.Handle("POST /api/admin-sync/reconcile", operators(http.HandlerFunc(adminSyncHandler.Reconcile)))
	mux.Handle("GET /api/admin-sync/status", operators(http.HandlerFunc(adminSyncHandler.SyncStatus)))

	var handler http.Handler = mux
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.SecurityHeaders(deps.RequireHTTPS)(handler)
	handler = metrics.HTTPMiddleware(handler)
	return handler
}
