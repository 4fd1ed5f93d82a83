package events

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

// ErrInvalidTransition is returned when an event is not in one of the states a
// status change requires.
var ErrInvalidTransition = errors.New("invalid event status transition")

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Event is the relational record owned by the teacher portal.
type Event struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	EventType            string     `json:"eventType"`
	StartDate            *time.Time `json:"startDate"`
	EndDate              *time.Time `json:"endDate"`
	StartTime            *string    `json:"startTime"`
	EndTime              *string    `json:"endTime"`
	Location             string     `json:"location"`
	MaxParticipants      *int       `json:"maxParticipants"`
	RegistrationRequired bool       `json:"registrationRequired"`
	RegistrationDeadline *time.Time `json:"registrationDeadline"`
	IsPublic             bool       `json:"isPublic"`
	Tags                 []string   `json:"tags"`
	ImageURL             *string    `json:"imageUrl"`
	Requirements         *string    `json:"requirements"`
	ContactEmail         *string    `json:"contactEmail"`
	ContactPhone         *string    `json:"contactPhone"`
	Campus               string     `json:"campus"`
	Status               Status     `json:"status"`
	CreatedBy            *int64     `json:"createdBy"`
	CreatedByName        string     `json:"createdByName"`
	CreatedByEmail       string     `json:"createdByEmail"`
	AdminNotes           *string    `json:"adminNotes"`
	RejectionReason      *string    `json:"rejectionReason"`
	ApprovedAt           *time.Time `json:"approvedAt"`
	IsActive             bool       `json:"isActive"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	Sync                 SyncState  `json:"sync"`
}

// SyncState tracks delivery of the event to the admin portal.
type SyncState struct {
	Synced        bool       `json:"synced"`
	SyncedAt      *time.Time `json:"syncedAt"`
	RemoteID      *string    `json:"remoteId"`
	Key           string     `json:"syncKey"`
	Attempts      int        `json:"syncAttempts"`
	LastAttemptAt *time.Time `json:"lastSyncAttemptAt"`
	NextAttemptAt *time.Time `json:"nextSyncAt"`
	LastError     *string    `json:"lastSyncError"`
	Halted        bool       `json:"syncHalted"`
	// ClaimedUntil is the lease of the attempt in flight, if any.
	ClaimedUntil  *time.Time `json:"syncClaimedUntil,omitempty"`
}

type CreateParams struct {
	Title                string
	Description          string
	EventType            string
	StartDate            *time.Time
	EndDate              *time.Time
	StartTime            *string
	EndTime              *string
	Location             string
	MaxParticipants      *int
	RegistrationRequired bool
	RegistrationDeadline *time.Time
	IsPublic             bool
	Tags                 []string
	ImageURL             *string
	Requirements         *string
	ContactEmail         *string
	ContactPhone         *string
	Campus               string
	Status               Status
	CreatedBy            *int64
	CreatedByName        string
	CreatedByEmail       string
	SyncKey              string
}

// UpdateParams carries the editable fields. ResubmitSyncKey replaces the sync
// key when the edit sends a rejected event back for review.
type UpdateParams struct {
	Title                string
	Description          string
	EventType            string
	StartDate            *time.Time
	EndDate              *time.Time
	StartTime            *string
	EndTime              *string
	Location             string
	MaxParticipants      *int
	RegistrationRequired bool
	RegistrationDeadline *time.Time
	IsPublic             bool
	Tags                 []string
	ImageURL             *string
	Requirements         *string
	ContactEmail         *string
	ContactPhone         *string
	Campus               string
	ResubmitSyncKey      string
}

type Filters struct {
	Status Status
	Campus string
	Synced *bool
}

type Pagination struct {
	Limit int
}

// TransitionParams describes a local status change. The update only applies
// when the current status is one of From.
type TransitionParams struct {
	From       []Status
	To         Status
	Deactivate bool
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	List(ctx context.Context, filters Filters, pagination Pagination) ([]Event, error)
	Transition(ctx context.Context, id int64, params TransitionParams) (*Event, error)
	// Update reports ErrInvalidTransition for cancelled events.
	Update(ctx context.Context, id int64, params UpdateParams) (*Event, error)
}
