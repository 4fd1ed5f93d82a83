package adminsync

import "time"

// RemoteStatus is the approval state held by the admin portal.
type RemoteStatus string

const (
	RemotePending   RemoteStatus = "pending"
	RemoteApproved  RemoteStatus = "approved"
	RemoteRejected  RemoteStatus = "rejected"
	RemoteCancelled RemoteStatus = "cancelled"
)

func (s RemoteStatus) Valid() bool {
	switch s {
	case RemotePending, RemoteApproved, RemoteRejected, RemoteCancelled:
		return true
	default:
		return false
	}
}

// RemoteEvent is the document the admin portal ingests on /api/events/sync.
// Optional fields have no omitempty: the admin portal expects explicit nulls.
type RemoteEvent struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	EventDate            string     `json:"eventDate"`
	StartTime            *string    `json:"startTime"`
	EndTime              *string    `json:"endTime"`
	Venue                string     `json:"venue"`
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
	CreatedBy            string     `json:"createdBy"`
	CreatedByName        string     `json:"createdByName"`
	CreatedByEmail       string     `json:"createdByEmail"`
	Campus               string     `json:"campus"`
	TeacherPortalID      int64      `json:"teacherPortalId"`
	Status               string     `json:"status"`

	// SyncKey travels as the Idempotency-Key header, not in the body.
	SyncKey string `json:"-"`
}

// RemoteAck is the admin portal's acknowledgement of a pushed event.
type RemoteAck struct {
	ID      string
	Status  string
	Message string
}

type syncResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Event struct {
			ID     string `json:"_id"`
			Status string `json:"status"`
		} `json:"event"`
	} `json:"data"`
}

type healthResponse struct {
	Status string `json:"status"`
}
