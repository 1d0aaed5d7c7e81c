package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEmailJSURL = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSConfig holds the EmailJS account identifiers
type EmailJSConfig struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	// URL overrides the EmailJS send endpoint
	URL string
}

// EmailJSRelay sends the templated notification through the EmailJS REST API
type EmailJSRelay struct {
	cfg    EmailJSConfig
	client *http.Client
}

// NewEmailJSRelay creates an EmailJS relay
func NewEmailJSRelay(cfg EmailJSConfig) *EmailJSRelay {
	if cfg.URL == "" {
		cfg.URL = defaultEmailJSURL
	}
	return &EmailJSRelay{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Name returns the relay name
func (e *EmailJSRelay) Name() string { return "emailjs" }

// Critical is false: EmailJS only notifies
func (e *EmailJSRelay) Critical() bool { return false }

// Deliver sends the EmailJS template
func (e *EmailJSRelay) Deliver(ctx context.Context, sub Submission) error {
	html, err := renderConfirmation(sub)
	if err != nil {
		return err
	}

	body, err := json.Marshal(emailJSRequest{
		ServiceID:      e.cfg.ServiceID,
		TemplateID:     e.cfg.TemplateID,
		UserID:         e.cfg.PublicKey,
		AccessToken:    e.cfg.PrivateKey,
		TemplateParams: templateParams(sub, html),
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling emailjs API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("emailjs API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// templateParams fills the variable names the EmailJS templates use
func templateParams(sub Submission, html string) map[string]string {
	params := map[string]string{
		"name":          sub.FirstName,
		"first_name":    sub.FirstName,
		"patient_name":  sub.FirstName,
		"to_name":       sub.FirstName,
		"email":         sub.Email,
		"to_email":      sub.Email,
		"patient_email": sub.Email,
		"phone":         sub.Fields["phone"],
		"province":      sub.Fields["province"],
		"benefits":      sub.Fields["benefits"],
		"member_id":     sub.Fields["member-id"],
		"health_goals":  sub.Fields["health_goals"],
		"message":       "Thank you for submitting your My-Dietitian assessment",
		"timestamp":     sub.SubmittedAt.Format("1/2/2006, 3:04:05 PM"),
		"from_name":     "My-Dietitian Team",
		"html_body":     html,
	}
	return params
}
