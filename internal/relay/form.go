package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FormRelay posts the submission as a URL-encoded form to a hosted form collector
type FormRelay struct {
	name     string
	endpoint string
	critical bool
	mailer   bool
	client   *http.Client
}

// NewFormRelay creates a relay that posts to endpoint
func NewFormRelay(name string, endpoint string, critical bool) *FormRelay {
	return &FormRelay{
		name:     name,
		endpoint: endpoint,
		critical: critical,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithMailerFields adds the _subject, _autoresponse and _captcha controls that mailing collectors read
func (f *FormRelay) WithMailerFields() *FormRelay {
	f.mailer = true
	return f
}

// Name returns the relay name
func (f *FormRelay) Name() string { return f.name }

// Critical reports whether this relay counts toward success
func (f *FormRelay) Critical() bool { return f.critical }

// Deliver posts the form
func (f *FormRelay) Deliver(ctx context.Context, sub Submission) error {
	form := url.Values{}
	for k, v := range sub.Fields {
		form.Set(k, v)
	}
	if f.mailer {
		if sub.Subject != "" {
			form.Set("_subject", sub.Subject)
		}
		if sub.AutoResponse != "" {
			form.Set("_autoresponse", sub.AutoResponse)
		}
		form.Set("_captcha", "false")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", f.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned status %d: %s", f.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
