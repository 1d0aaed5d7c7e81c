package relay

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
)

// confirmationTemplate is the patient confirmation email
var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { background-color: #f4f7f5; font-family: Arial, sans-serif; margin: 0; padding: 32px 0; }
    .container { background-color: #ffffff; border-radius: 12px; padding: 32px; max-width: 560px; margin: 0 auto; }
    h1 { color: #2f6f4f; font-size: 24px; margin: 0 0 16px; }
    .text { color: #333333; font-size: 16px; line-height: 24px; }
    .next-steps { background: #eef6f1; border-radius: 8px; padding: 16px; margin: 24px 0; }
    .footer { color: #888888; font-size: 12px; text-align: center; margin-top: 24px; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Thanks{{if .FirstName}}, {{.FirstName}}{{end}}!</h1>
    <p class="text">We received your My-Dietitian assessment. To move forward with scheduling your appointment, we just need to quickly verify your insurance details with your insurance provider.</p>
    <div class="next-steps">
      <p class="text"><strong>What happens next</strong></p>
      <p class="text">We'll have you connected with your dietitian within 1-2 business days after verification is complete.</p>
    </div>
    <p class="text">Best regards,<br>The My-Dietitian Team</p>
    <p class="footer">Connecting you with registered dietitians covered by your benefits.<br>Submitted {{.SubmittedAt.Format "January 2, 2006 3:04 PM"}}</p>
  </div>
</body>
</html>
`))

// ResendRelay emails the patient a confirmation through Resend
type ResendRelay struct {
	client *resend.Client
	from   string
}

// NewResendRelay creates a Resend relay for the given API key and sender
func NewResendRelay(apiKey string, from string) *ResendRelay {
	return NewResendRelayWithClient(resend.NewClient(apiKey), from)
}

// NewResendRelayWithClient creates a Resend relay with a custom client for testing
func NewResendRelayWithClient(client *resend.Client, from string) *ResendRelay {
	if from == "" {
		from = "My-Dietitian <hello@my-dietitian.ca>"
	}
	return &ResendRelay{client: client, from: from}
}

// Name returns the relay name
func (r *ResendRelay) Name() string { return "resend" }

// Critical is false: the confirmation does not record the lead
func (r *ResendRelay) Critical() bool { return false }

// Deliver sends the confirmation email
func (r *ResendRelay) Deliver(ctx context.Context, sub Submission) error {
	if sub.Email == "" {
		return fmt.Errorf("submission has no email address")
	}

	html, err := renderConfirmation(sub)
	if err != nil {
		return err
	}

	_, err = r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{sub.Email},
		Subject: "We received your My-Dietitian assessment",
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("sending confirmation email: %w", err)
	}
	return nil
}

func renderConfirmation(sub Submission) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, sub); err != nil {
		return "", fmt.Errorf("rendering confirmation email: %w", err)
	}
	return buf.String(), nil
}
