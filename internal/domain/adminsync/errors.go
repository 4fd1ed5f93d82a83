package adminsync

import (
	"errors"
	"fmt"
)

var (
	// ErrEventNotFound matches *NotFoundError.
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidStatus = errors.New("invalid remote status")
	// ErrEventCancelled rejects remote decisions for events the teacher
	// cancelled locally.
	ErrEventCancelled = errors.New("event cancelled locally")
)

// MappingError means an event cannot be expressed in the admin portal schema.
// Retrying the same record will fail the same way.
type MappingError struct {
	EventID int64
	Field   string
	Reason  string
}

func (e *MappingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("map event %d: %s", e.EventID, e.Reason)
	}
	return fmt.Sprintf("map event %d: %s %s", e.EventID, e.Field, e.Reason)
}

// ErrorKind classifies a failed push or probe.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindConnectionRefused
	KindTimeout
	KindRemoteRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionRefused:
		return "connection_refused"
	case KindTimeout:
		return "timeout"
	case KindRemoteRejected:
		return "remote_rejected"
	default:
		return "unexpected"
	}
}

// TransportError is returned for every failed exchange with the admin portal.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("admin portal %s (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("admin portal %s: %s", e.Kind, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a *TransportError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == kind
}

// NotFoundError is returned when a remote status update names an event the
// teacher portal does not hold.
type NotFoundError struct {
	TeacherPortalID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("event %d not found", e.TeacherPortalID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrEventNotFound
}
