package handlers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/campus-events/server/internal/api/problem"
	"github.com/campus-events/server/internal/domain/adminsync"
	"github.com/campus-events/server/internal/sanitize"
)

// StatusApplier applies admin portal decisions locally.
type StatusApplier interface {
	OnRemoteStatusChanged(ctx context.Context, teacherPortalID int64, status string, note string) error
}

type WebhooksHandler struct {
	Sync      StatusApplier
	Env       string
	validator *validator.Validate
}

func NewWebhooksHandler(sync StatusApplier, env string) *WebhooksHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	})
	return &WebhooksHandler{Sync: sync, Env: env, validator: v}
}

type statusChangeRequest struct {
	TeacherPortalID int64  `json:"teacherPortalId" validate:"required,gt=0"`
	Status          string `json:"status" validate:"required"`
	AdminNotes      string `json:"adminNotes" validate:"max=2000"`
}

// EventStatus receives POST /api/webhooks/admin/event-status.
func (h *WebhooksHandler) EventStatus(w http.ResponseWriter, r *http.Request) {
	var req statusChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(fieldErrors(err)))
		return
	}

	err := h.Sync.OnRemoteStatusChanged(r.Context(), req.TeacherPortalID, strings.ToLower(strings.TrimSpace(req.Status)), sanitize.Text(req.AdminNotes))
	switch {
	case err == nil:
		writeSuccess(w, http.StatusOK, "Event status updated", nil)
	case errors.Is(err, adminsync.ErrInvalidStatus):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid status", err, h.Env,
			problem.WithErrors(map[string]string{"status": "must be one of pending, approved, rejected, cancelled"}))
	case errors.Is(err, adminsync.ErrEventNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env)
	case errors.Is(err, adminsync.ErrEventCancelled):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Event was cancelled by its creator", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}

func fieldErrors(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}
	fields := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "gt":
			fields[fe.Field()] = "must be greater than " + fe.Param()
		case "max":
			fields[fe.Field()] = "must be at most " + fe.Param() + " characters"
		default:
			fields[fe.Field()] = "is invalid"
		}
	}
	return fields
}
