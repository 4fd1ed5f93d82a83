package adminsync

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/server/internal/domain/events"
)

func TestMapper_HackathonScenario(t *testing.T) {
	mapper := NewMapper(DefaultMapperDefaults(), fixedClock())

	remote, err := mapper.ToRemote(pendingEvent(42))
	require.NoError(t, err)

	assert.Equal(t, "Hackathon", remote.Title)
	assert.Equal(t, "competition", remote.Category)
	assert.Equal(t, "2025-03-01", remote.EventDate)
	assert.Equal(t, "Lab 3", remote.Venue)
	assert.Equal(t, "Lab 3", remote.Location)
	assert.Equal(t, int64(42), remote.TeacherPortalID)
	assert.Equal(t, "pending", remote.Status)
	assert.Equal(t, "teacher", remote.CreatedBy)
	assert.Equal(t, "Teacher", remote.CreatedByName)
	assert.Equal(t, "teacher@bitspilani.ac.ae", remote.CreatedByEmail)
	assert.Equal(t, []string{}, remote.Tags)
}

func TestMapper_IsPure(t *testing.T) {
	mapper := NewMapper(DefaultMapperDefaults(), fixedClock())
	event := pendingEvent(7)
	event.Tags = []string{"ai", "robotics"}

	first, err := mapper.ToRemote(event)
	require.NoError(t, err)
	second, err := mapper.ToRemote(event)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	first.Tags[0] = "changed"
	assert.Equal(t, "ai", event.Tags[0], "mapped tags must not alias the local record")
}

func TestMapper_TeacherPortalIDMatchesLocalID(t *testing.T) {
	for _, id := range []int64{1, 42, 9001, 1 << 40} {
		remote, err := MapToRemoteSchema(pendingEvent(id))
		require.NoError(t, err)
		assert.Equal(t, id, remote.TeacherPortalID)
	}
}

func TestMapper_MissingStartDateUsesClock(t *testing.T) {
	now := time.Date(2025, 11, 20, 23, 0, 0, 0, time.UTC)
	mapper := NewMapper(DefaultMapperDefaults(), func() time.Time { return now })

	event := pendingEvent(3)
	event.StartDate = nil

	remote, err := mapper.ToRemote(event)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-20", remote.EventDate)
}

func TestMapper_OptionalFieldsEncodeAsNull(t *testing.T) {
	mapper := NewMapper(DefaultMapperDefaults(), fixedClock())
	event := pendingEvent(5)
	empty := ""
	event.StartTime = &empty

	remote, err := mapper.ToRemote(event)
	require.NoError(t, err)

	raw, err := json.Marshal(remote)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{
		"startTime", "endTime", "imageUrl", "requirements", "registrationDeadline",
		"maxParticipants", "contactEmail", "contactPhone",
	} {
		value, present := doc[key]
		assert.True(t, present, "%s must be present", key)
		assert.Nil(t, value, "%s must be null", key)
	}
	assert.NotContains(t, doc, "SyncKey")
}

func TestMapper_CarriesOptionalValues(t *testing.T) {
	mapper := NewMapper(DefaultMapperDefaults(), fixedClock())
	event := pendingEvent(6)
	start, phone, capacity := "10:00", "+971 4 275 3700", 120
	event.StartTime = &start
	event.ContactPhone = &phone
	event.MaxParticipants = &capacity
	event.CreatedByName = "Dr. Rao"
	event.CreatedByEmail = "rao@dubai.bits-pilani.ac.in"
	event.Campus = "pilani"
	event.Status = events.StatusApproved

	remote, err := mapper.ToRemote(event)
	require.NoError(t, err)
	require.NotNil(t, remote.StartTime)
	assert.Equal(t, "10:00", *remote.StartTime)
	assert.Equal(t, &phone, remote.ContactPhone)
	assert.Equal(t, &capacity, remote.MaxParticipants)
	assert.Equal(t, "Dr. Rao", remote.CreatedByName)
	assert.Equal(t, "rao@dubai.bits-pilani.ac.in", remote.CreatedByEmail)
	assert.Equal(t, "pilani", remote.Campus)
	assert.Equal(t, "pending", remote.Status, "remote workflow always starts at pending")
	assert.Equal(t, event.Sync.Key, remote.SyncKey)
}

func TestMapper_CustomDefaults(t *testing.T) {
	mapper := NewMapper(MapperDefaults{Campus: "goa", CreatedByName: "Faculty"}, fixedClock())
	event := pendingEvent(8)
	event.Campus = ""

	remote, err := mapper.ToRemote(event)
	require.NoError(t, err)
	assert.Equal(t, "goa", remote.Campus)
	assert.Equal(t, "Faculty", remote.CreatedByName)
	assert.Equal(t, "teacher", remote.CreatedBy)
}

func TestMapper_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*events.Event)
		field  string
	}{
		{"zero id", func(e *events.Event) { e.ID = 0 }, "id"},
		{"empty title", func(e *events.Event) { e.Title = "" }, "title"},
		{"draft", func(e *events.Event) { e.Status = events.StatusDraft }, "status"},
		{"unknown status", func(e *events.Event) { e.Status = "archived" }, "status"},
	}

	mapper := NewMapper(DefaultMapperDefaults(), fixedClock())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := pendingEvent(9)
			tt.mutate(&event)

			_, err := mapper.ToRemote(event)
			var mapErr *MappingError
			require.True(t, errors.As(err, &mapErr))
			assert.Equal(t, tt.field, mapErr.Field)
		})
	}
}
