package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/campus-events/server/internal/sanitize"
)

const (
	dateLayout = "2006-01-02"
	maxLimit   = 50
)

// SyncHook is notified after an event has been durably written and is ready
// to leave the teacher portal.
type SyncHook interface {
	OnEventCreated(ctx context.Context, event Event)
}

type ServiceConfig struct {
	AutoApprove   bool
	DefaultCampus string
}

// CreateInput is the teacher-facing create payload.
type CreateInput struct {
	Title                string   `json:"title" validate:"required,max=200"`
	Description          string   `json:"description" validate:"required,max=5000"`
	EventType            string   `json:"eventType" validate:"required,oneof=academic cultural sports workshop seminar competition social"`
	StartDate            string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate              string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime            *string  `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime              *string  `json:"endTime" validate:"omitempty,datetime=15:04"`
	Location             string   `json:"location" validate:"required,max=300"`
	MaxParticipants      *int     `json:"maxParticipants" validate:"omitempty,min=1"`
	RegistrationRequired bool     `json:"registrationRequired"`
	RegistrationDeadline string   `json:"registrationDeadline" validate:"omitempty,datetime=2006-01-02"`
	IsPublic             *bool    `json:"isPublic"`
	Tags                 []string `json:"tags" validate:"max=20,dive,max=50"`
	ImageURL             *string  `json:"imageUrl" validate:"omitempty,url"`
	Requirements         *string  `json:"requirements" validate:"omitempty,max=2000"`
	ContactEmail         *string  `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone         *string  `json:"contactPhone" validate:"omitempty,max=40"`
	Campus               string   `json:"campus" validate:"omitempty,oneof=dubai pilani goa hyderabad"`
	CreatedBy            *int64   `json:"createdBy"`
	CreatedByName        string   `json:"createdByName" validate:"max=200"`
	CreatedByEmail       string   `json:"createdByEmail" validate:"omitempty,email"`
	Draft                bool     `json:"draft"`
}

type Service struct {
	repo      Repository
	hook      SyncHook
	config    ServiceConfig
	validator *validator.Validate
	logger    zerolog.Logger
	inflight  sync.WaitGroup
}

// NewService wires the event service. hook may be nil, in which case created
// events stay local.
func NewService(repo Repository, hook SyncHook, cfg ServiceConfig, logger zerolog.Logger) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if cfg.DefaultCampus == "" {
		cfg.DefaultCampus = "dubai"
	}
	return &Service{
		repo:      repo,
		hook:      hook,
		config:    cfg,
		validator: v,
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// Create stores the event locally and then hands it to the sync hook on a
// separate goroutine. The returned event reflects the local write only.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Event, error) {
	params, err := s.buildCreateParams(input)
	if err != nil {
		return nil, err
	}

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().
		Int64("event_id", event.ID).
		Str("status", string(event.Status)).
		Msg("event created")

	if event.Status != StatusDraft {
		s.fireSyncHook(ctx, *event)
	}
	return event, nil
}

// Submit promotes a draft to pending and triggers its first sync attempt.
func (s *Service) Submit(ctx context.Context, id int64) (*Event, error) {
	event, err := s.repo.Transition(ctx, id, TransitionParams{
		From: []Status{StatusDraft},
		To:   StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("submit event %d: %w", id, err)
	}
	s.fireSyncHook(ctx, *event)
	return event, nil
}

// Cancel marks the event cancelled and inactive. Already cancelled events
// report ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, id int64) (*Event, error) {
	event, err := s.repo.Transition(ctx, id, TransitionParams{
		From:       []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected},
		To:         StatusCancelled,
		Deactivate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel event %d: %w", id, err)
	}
	return event, nil
}

// Update edits an event with the same rules as Create. Creator and draft
// fields are ignored. Editing a rejected event returns it to pending and
// starts a fresh sync attempt; cancelled events report ErrInvalidTransition.
func (s *Service) Update(ctx context.Context, id int64, input CreateInput) (*Event, error) {
	created, err := s.buildCreateParams(input)
	if err != nil {
		return nil, err
	}

	event, err := s.repo.Update(ctx, id, UpdateParams{
		Title:                created.Title,
		Description:          created.Description,
		EventType:            created.EventType,
		StartDate:            created.StartDate,
		EndDate:              created.EndDate,
		StartTime:            created.StartTime,
		EndTime:              created.EndTime,
		Location:             created.Location,
		MaxParticipants:      created.MaxParticipants,
		RegistrationRequired: created.RegistrationRequired,
		RegistrationDeadline: created.RegistrationDeadline,
		IsPublic:             created.IsPublic,
		Tags:                 created.Tags,
		ImageURL:             created.ImageURL,
		Requirements:         created.Requirements,
		ContactEmail:         created.ContactEmail,
		ContactPhone:         created.ContactPhone,
		Campus:               created.Campus,
		ResubmitSyncKey:      created.SyncKey,
	})
	if err != nil {
		return nil, fmt.Errorf("update event %d: %w", id, err)
	}

	s.logger.Info().
		Int64("event_id", event.ID).
		Str("status", string(event.Status)).
		Msg("event updated")

	if event.Status != StatusDraft && !event.Sync.Synced {
		s.fireSyncHook(ctx, *event)
	}
	return event, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters Filters, pagination Pagination) ([]Event, error) {
	if pagination.Limit <= 0 || pagination.Limit > maxLimit {
		pagination.Limit = maxLimit
	}
	return s.repo.List(ctx, filters, pagination)
}

// Wait blocks until every in-flight sync hook has returned or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) fireSyncHook(ctx context.Context, event Event) {
	if s.hook == nil {
		return
	}
	hookCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.hook.OnEventCreated(hookCtx, event)
	}()
}

func (s *Service) buildCreateParams(input CreateInput) (CreateParams, error) {
	if err := s.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = validationMessage(fe)
			}
			return CreateParams{}, ValidationError{Fields: fields}
		}
		return CreateParams{}, fmt.Errorf("validate event: %w", err)
	}

	startDate, _ := parseOptionalDate(input.StartDate)
	endDate, _ := parseOptionalDate(input.EndDate)
	deadline, _ := parseOptionalDate(input.RegistrationDeadline)
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return CreateParams{}, ValidationError{Fields: map[string]string{"endDate": "must be on or after startDate"}}
	}

	title := sanitize.Text(input.Title)
	location := sanitize.Text(input.Location)
	if title == "" || location == "" {
		fields := map[string]string{}
		if title == "" {
			fields["title"] = "is required"
		}
		if location == "" {
			fields["location"] = "is required"
		}
		return CreateParams{}, ValidationError{Fields: fields}
	}

	status := StatusPending
	switch {
	case input.Draft:
		status = StatusDraft
	case s.config.AutoApprove:
		status = StatusApproved
	}

	campus := input.Campus
	if campus == "" {
		campus = s.config.DefaultCampus
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	tags := sanitize.TextSlice(input.Tags)
	if tags == nil {
		tags = []string{}
	}

	return CreateParams{
		Title:                title,
		Description:          sanitize.HTML(input.Description),
		EventType:            input.EventType,
		StartDate:            startDate,
		EndDate:              endDate,
		StartTime:            input.StartTime,
		EndTime:              input.EndTime,
		Location:             location,
		MaxParticipants:      input.MaxParticipants,
		RegistrationRequired: input.RegistrationRequired,
		RegistrationDeadline: deadline,
		IsPublic:             isPublic,
		Tags:                 tags,
		ImageURL:             input.ImageURL,
		Requirements:         sanitize.OptionalHTML(input.Requirements),
		ContactEmail:         input.ContactEmail,
		ContactPhone:         sanitize.OptionalText(input.ContactPhone),
		Campus:               campus,
		Status:               status,
		CreatedBy:            input.CreatedBy,
		CreatedByName:        sanitize.Text(input.CreatedByName),
		CreatedByEmail:       input.CreatedByEmail,
		SyncKey:              ulid.Make().String(),
	}, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match " + fe.Param()
	case "email":
		return "must be an email address"
	case "url":
		return "must be a URL"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

func parseOptionalDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseFilters reads list filters from query parameters.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{}
	pagination := Pagination{Limit: maxLimit}

	if raw := strings.ToLower(strings.TrimSpace(values.Get("status"))); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return filters, pagination, FilterError{Field: "status", Message: "unsupported status"}
		}
		filters.Status = status
	}

	if raw := strings.ToLower(strings.TrimSpace(values.Get("campus"))); raw != "" {
		if !isAllowedCampus(raw) {
			return filters, pagination, FilterError{Field: "campus", Message: "unsupported campus"}
		}
		filters.Campus = raw
	}

	if raw := strings.TrimSpace(values.Get("synced")); raw != "" {
		synced, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, pagination, FilterError{Field: "synced", Message: "must be true or false"}
		}
		filters.Synced = &synced
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filters, pagination, FilterError{Field: "limit", Message: "must be a number"}
		}
		if limit < 1 || limit > maxLimit {
			return filters, pagination, FilterError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxLimit)}
		}
		pagination.Limit = limit
	}

	return filters, pagination, nil
}

func isAllowedCampus(value string) bool {
	switch value {
	case "dubai", "pilani", "goa", "hyderabad":
		return true
	default:
		return false
	}
}
