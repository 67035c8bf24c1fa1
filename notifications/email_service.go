package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	AdminEmails []string
	Endpoint    string
}

// BrevoService emails admin events to the configured admin addresses.
type BrevoService struct {
	cfg    BrevoConfig
	client *http.Client
	log    zerolog.Logger
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoService returns nil when the sender or the recipients are not configured.
func NewBrevoService(cfg BrevoConfig, log zerolog.Logger) *BrevoService {
	log = log.With().Str("component", "email").Logger()
	if cfg.APIKey == "" || cfg.SenderEmail == "" || len(cfg.AdminEmails) == 0 {
		log.Warn().Msg("email notifications not configured, admin emails disabled")
		return nil
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = brevoEndpoint
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "EventHaiti Payouts"
	}
	return &BrevoService{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (s *BrevoService) Name() string { return "email" }

func (s *BrevoService) Deliver(ctx context.Context, evt AdminEvent) error {
	subject := fmt.Sprintf("[Payouts] %s", evt.Type)
	body := fmt.Sprintf(
		"<p>%s</p><p>Organizer: %s<br>Reference: %s<br>Status: %s<br>At: %s</p>",
		html.EscapeString(evt.Message),
		evt.OrganizerID, evt.EntityID,
		html.EscapeString(evt.Status),
		evt.OccurredAt.Format(time.RFC1123),
	)

	var errs []error
	for _, to := range s.cfg.AdminEmails {
		if err := s.send(ctx, to, "", subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *BrevoService) send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	at := strings.Index(toEmail, "@")
	if at <= 0 {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}
	if toName == "" {
		toName = toEmail[:at]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.cfg.SenderName, "email": s.cfg.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": toName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.cfg.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	s.log.Debug().Str("to", toEmail).Str("subject", subject).Msg("email sent")
	return nil
}
