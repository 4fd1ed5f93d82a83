// Package internal documents the teacher portal server internals.
//
// The internal tree is organized by responsibility:
//   - api: HTTP handlers, middleware, problem responses, and routing
//   - domain/events: the teacher-owned event record and its lifecycle
//   - domain/adminsync: mapping, transport, orchestration, and reconciliation
//     of events towards the admin portal
//   - storage: Postgres repository and migrations
//   - jobs: River workers for scheduled reconciliation and notifications
//   - auth, config, email, lock, metrics, sanitize, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
