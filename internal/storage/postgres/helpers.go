package postgres

import "github.com/campus-events/server/internal/domain/events"

// statusStrings converts statuses for a text[] parameter.
func statusStrings(statuses []events.Status) []string {
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}
