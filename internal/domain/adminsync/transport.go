package adminsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/campus-events/server/internal/metrics"
)

const (
	// DefaultPushTimeout bounds a single POST to the admin portal
	DefaultPushTimeout = 10 * time.Second
	// DefaultHealthTimeout bounds the liveness probe
	DefaultHealthTimeout = 5 * time.Second
	// DefaultSource is sent as X-Sync-Source
	DefaultSource = "teacher-portal"

	syncPath         = "/api/events/sync"
	healthPath       = "/health"
	maxResponseBytes = 1 << 20
	tracerName       = "github.com/campus-events/server/internal/domain/adminsync"
)

// Transport moves mapped events to the admin portal.
type Transport interface {
	PushEvent(ctx context.Context, event RemoteEvent) (*RemoteAck, error)
	CheckHealth(ctx context.Context) bool
}

// HTTPTransport talks to the admin portal over its JSON API.
type HTTPTransport struct {
	httpClient    *http.Client
	baseURL       string
	source        string
	pushTimeout   time.Duration
	healthTimeout time.Duration
	limiter       *rate.Limiter
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client. Per-call timeouts still apply.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = client
	}
}

// WithTimeouts overrides the push and health timeouts. Zero keeps the default.
func WithTimeouts(push, health time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		if push > 0 {
			t.pushTimeout = push
		}
		if health > 0 {
			t.healthTimeout = health
		}
	}
}

// WithRateLimit paces pushes to rps per second across every caller sharing
// the transport. rps <= 0 disables pacing.
func WithRateLimit(rps float64) TransportOption {
	return func(t *HTTPTransport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithSource(source string) TransportOption {
	return func(t *HTTPTransport) {
		if source != "" {
			t.source = source
		}
	}
}

func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport for the admin portal at baseURL
// (e.g. "http://localhost:3002").
func NewHTTPTransport(baseURL string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		httpClient:    &http.Client{},
		baseURL:       strings.TrimRight(baseURL, "/"),
		source:        DefaultSource,
		pushTimeout:   DefaultPushTimeout,
		healthTimeout: DefaultHealthTimeout,
		logger:        zerolog.Nop(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "adminsync_transport").Logger()
	return t
}

// PushEvent posts one event. Every failure is a *TransportError.
func (t *HTTPTransport) PushEvent(ctx context.Context, event RemoteEvent) (*RemoteAck, error) {
	ctx, span := t.tracer.Start(ctx, "adminsync.PushEvent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("event.teacher_portal_id", event.TeacherPortalID)),
	)
	defer span.End()

	start := time.Now()
	ack, err := t.push(ctx, event)
	metrics.SyncPushLatency.Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			result = te.Kind.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	} else {
		span.SetAttributes(attribute.String("admin_portal.event_id", ack.ID))
	}
	metrics.SyncPushesTotal.WithLabelValues(result).Inc()
	return ack, err
}

func (t *HTTPTransport) push(ctx context.Context, event RemoteEvent) (*RemoteAck, error) {
	// The timeout covers pacing too, so an attempt never outlives its claim.
	ctx, cancel := context.WithTimeout(ctx, t.pushTimeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, classifyRequestError(fmt.Errorf("rate limiter: %w", err))
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, &TransportError{Kind: KindUnexpected, Message: "encode event", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+syncPath, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Kind: KindUnexpected, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Sync-Source", t.source)
	if event.SyncKey != "" {
		req.Header.Set("Idempotency-Key", event.SyncKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyRequestError(fmt.Errorf("read response: %w", err))
	}

	var envelope syncResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	// A structured refusal counts as a rejection whatever the status code.
	if decodeErr == nil && envelope.Success != nil && !*envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = "rejected without message"
		}
		return nil, &TransportError{Kind: KindRemoteRejected, StatusCode: resp.StatusCode, Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Kind:       KindUnexpected,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status code: %s", truncate(string(raw), 200)),
		}
	}
	if decodeErr != nil {
		return nil, &TransportError{Kind: KindUnexpected, StatusCode: resp.StatusCode, Message: "decode response", Err: decodeErr}
	}
	if envelope.Success == nil {
		return nil, &TransportError{Kind: KindUnexpected, StatusCode: resp.StatusCode, Message: "response missing success flag"}
	}

	if envelope.Data.Event.ID == "" {
		t.logger.Warn().
			Int64("teacher_portal_id", event.TeacherPortalID).
			Msg("admin portal accepted event without returning an id")
	}
	return &RemoteAck{
		ID:      envelope.Data.Event.ID,
		Status:  envelope.Data.Event.Status,
		Message: envelope.Message,
	}, nil
}

// CheckHealth reports whether the admin portal answers /health with
// {"status":"healthy"}. Any error means unhealthy.
func (t *HTTPTransport) CheckHealth(ctx context.Context) bool {
	ctx, span := t.tracer.Start(ctx, "adminsync.CheckHealth", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	healthy := t.checkHealth(ctx)
	span.SetAttributes(attribute.Bool("admin_portal.healthy", healthy))
	if healthy {
		metrics.RemoteHealthChecksTotal.WithLabelValues("up").Inc()
	} else {
		metrics.RemoteHealthChecksTotal.WithLabelValues("down").Inc()
	}
	return healthy
}

func (t *HTTPTransport) checkHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, t.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Debug().Err(err).Msg("admin portal health probe failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy"
}

func classifyRequestError(err error) *TransportError {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &TransportError{Kind: KindConnectionRefused, Message: "connection refused", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &TransportError{Kind: KindUnexpected, Err: err}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
