package adminsync

import (
	"time"

	"github.com/campus-events/server/internal/domain/events"
)

const eventDateLayout = "2006-01-02"

// MapperDefaults fill remote fields the local record leaves empty.
type MapperDefaults struct {
	CreatedBy      string
	CreatedByName  string
	CreatedByEmail string
	Campus         string
	Status         RemoteStatus
}

func DefaultMapperDefaults() MapperDefaults {
	return MapperDefaults{
		CreatedBy:      "teacher",
		CreatedByName:  "Teacher",
		CreatedByEmail: "teacher@bitspilani.ac.ae",
		Campus:         "dubai",
		Status:         RemotePending,
	}
}

// Mapper translates local events into admin portal documents. It performs no
// I/O; the clock only supplies eventDate when the record has no start date.
type Mapper struct {
	defaults MapperDefaults
	now      func() time.Time
}

// NewMapper builds a mapper. Empty default fields fall back to
// DefaultMapperDefaults; a nil clock means time.Now.
func NewMapper(defaults MapperDefaults, now func() time.Time) *Mapper {
	base := DefaultMapperDefaults()
	if defaults.CreatedBy == "" {
		defaults.CreatedBy = base.CreatedBy
	}
	if defaults.CreatedByName == "" {
		defaults.CreatedByName = base.CreatedByName
	}
	if defaults.CreatedByEmail == "" {
		defaults.CreatedByEmail = base.CreatedByEmail
	}
	if defaults.Campus == "" {
		defaults.Campus = base.Campus
	}
	if defaults.Status == "" {
		defaults.Status = base.Status
	}
	if now == nil {
		now = time.Now
	}
	return &Mapper{defaults: defaults, now: now}
}

var defaultMapper = NewMapper(DefaultMapperDefaults(), nil)

// MapToRemoteSchema maps with the default mapper.
func MapToRemoteSchema(event events.Event) (RemoteEvent, error) {
	return defaultMapper.ToRemote(event)
}

// ToRemote maps a local event. Drafts and unknown statuses are rejected; the
// remote status always starts at the configured default so the admin
// workflow begins fresh.
func (m *Mapper) ToRemote(event events.Event) (RemoteEvent, error) {
	if event.ID == 0 {
		return RemoteEvent{}, &MappingError{Field: "id", Reason: "is required"}
	}
	if event.Title == "" {
		return RemoteEvent{}, &MappingError{EventID: event.ID, Field: "title", Reason: "is required"}
	}
	switch {
	case event.Status == events.StatusDraft:
		return RemoteEvent{}, &MappingError{EventID: event.ID, Field: "status", Reason: "draft events are not synced"}
	case !event.Status.Valid():
		return RemoteEvent{}, &MappingError{EventID: event.ID, Field: "status", Reason: "unknown status " + string(event.Status)}
	}

	eventDate := m.now().Format(eventDateLayout)
	if event.StartDate != nil {
		eventDate = event.StartDate.Format(eventDateLayout)
	}

	tags := make([]string, len(event.Tags))
	copy(tags, event.Tags)

	createdByName := event.CreatedByName
	if createdByName == "" {
		createdByName = m.defaults.CreatedByName
	}
	createdByEmail := event.CreatedByEmail
	if createdByEmail == "" {
		createdByEmail = m.defaults.CreatedByEmail
	}
	campus := event.Campus
	if campus == "" {
		campus = m.defaults.Campus
	}

	return RemoteEvent{
		Title:                event.Title,
		Description:          event.Description,
		Category:             event.EventType,
		EventDate:            eventDate,
		StartTime:            nonEmpty(event.StartTime),
		EndTime:              nonEmpty(event.EndTime),
		Venue:                event.Location,
		Location:             event.Location,
		MaxParticipants:      event.MaxParticipants,
		RegistrationRequired: event.RegistrationRequired,
		RegistrationDeadline: event.RegistrationDeadline,
		IsPublic:             event.IsPublic,
		Tags:                 tags,
		ImageURL:             nonEmpty(event.ImageURL),
		Requirements:         nonEmpty(event.Requirements),
		ContactEmail:         nonEmpty(event.ContactEmail),
		ContactPhone:         nonEmpty(event.ContactPhone),
		CreatedBy:            m.defaults.CreatedBy,
		CreatedByName:        createdByName,
		CreatedByEmail:       createdByEmail,
		Campus:               campus,
		TeacherPortalID:      event.ID,
		Status:               string(m.defaults.Status),
		SyncKey:              event.Sync.Key,
	}, nil
}

// nonEmpty turns empty optional strings into JSON null.
func nonEmpty(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}
