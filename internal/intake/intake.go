// Package intake stores card scans and assessment leads and serves the intake site.
package intake

import (
	"sort"
	"strings"
	"time"

	"github.com/zombor/card-intake/internal/card"
	"github.com/zombor/card-intake/internal/relay"
)

// CardScan is one uploaded card image and what was read from it
type CardScan struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Text        string      `json:"text"`
	Record      card.Record `json:"record"`
	CreatedAt   time.Time   `json:"created_at"`
}

// LeadForm is the assessment form as the visitor submitted it
type LeadForm struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	DateOfBirth string   `json:"date_of_birth"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Province    string   `json:"province"`
	Benefits    string   `json:"benefits"`
	Insurance   string   `json:"insurance,omitempty"`
	MemberID    string   `json:"member_id,omitempty"`
	GroupNumber string   `json:"group_number,omitempty"`
	HealthGoals []string `json:"health_goals"`
	Location    string   `json:"location,omitempty"`
	Specialty   string   `json:"specialty,omitempty"`
	// ScanID links the card scan the insurance fields were filled from
	ScanID string `json:"scan_id,omitempty"`
}

// Lead is a stored, validated assessment
type Lead struct {
	ID         string        `json:"id"`
	Form       LeadForm      `json:"form"`
	Submission *relay.Result `json:"submission,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Outcome tells the browser where to go after a submission
type Outcome struct {
	Redirect string `json:"redirect"`
}

// ValidationError lists the form fields that failed validation
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid lead: " + strings.Join(keys, ", ")
}
