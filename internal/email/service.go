package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/campus-events/server/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service sends teacher notifications through Resend.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	templates    *template.Template
	now          func() time.Time
	logger       zerolog.Logger
}

// StatusChangeData holds data for the status change template.
type StatusChangeData struct {
	RecipientName string
	Title         string
	Status        string
	Note          string
	EventDate     string
	EventURL      string
	CurrentYear   int
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend API key is required when email is enabled")
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		templates: templates,
		now:       time.Now,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// SendStatusChange tells the creating teacher about an admin portal decision.
// With email disabled it only logs.
func (s *Service) SendStatusChange(ctx context.Context, to string, data StatusChangeData) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	if data.EventURL != "" {
		if err := validateLinkURL(data.EventURL); err != nil {
			return fmt.Errorf("invalid event link: %w", err)
		}
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("title", data.Title).
			Str("status", data.Status).
			Msg("email service disabled, skipping status change email")
		return nil
	}

	if data.RecipientName == "" {
		data.RecipientName = "there"
	}
	if data.CurrentYear == 0 {
		data.CurrentYear = s.now().Year()
	}
	htmlBody, err := s.renderTemplate("status_change.html", data)
	if err != nil {
		return fmt.Errorf("failed to render status change template: %w", err)
	}

	subject := fmt.Sprintf("Your event %q was %s", data.Title, data.Status)
	if err := s.sendViaResend(ctx, to, subject, htmlBody); err != nil {
		return fmt.Errorf("failed to send status change email: %w", err)
	}
	return nil
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

// validateLinkURL only allows absolute http(s) links in email bodies.
func validateLinkURL(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
