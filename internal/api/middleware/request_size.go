package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize bounds teacher-facing request bodies.
	DefaultMaxBodySize int64 = 1 << 20
	// WebhookMaxBodySize bounds admin portal webhook bodies, which carry
	// only an id, a status and a note.
	WebhookMaxBodySize int64 = 64 << 10
)

// RequestSize wraps the body with http.MaxBytesReader. Decoders then fail
// with *http.MaxBytesError, which handlers map to 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
