package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/card-intake/internal/card"
	"github.com/zombor/card-intake/internal/relay"
	"github.com/zombor/card-intake/internal/scanning"
)

const (
	// ThankYouPath is where the browser goes after a stored lead
	ThankYouPath = "/thank-you"
	// Health811Path is where visitors without benefits are sent
	Health811Path = "/health811"

	leadSubject      = "New My-Dietitian Assessment Submission"
	leadAutoResponse = "Thanks! We received your assessment and will get back to you within 5 business days. A registered Dietitian from our team will be in touch soon to help you achieve your health goals."
)

// ErrScannerUnavailable is returned when no OCR backend is configured
var ErrScannerUnavailable = errors.New("card scanning is not configured")

// IDGenerator generates unique IDs for scans and leads
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles card scans and leads
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	dispatcher  *relay.Dispatcher
	extractor   *card.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, dispatcher *relay.Dispatcher) *Service {
	return NewServiceWithDeps(db, scanner, storage, dispatcher, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, dispatcher *relay.Dispatcher, idGen IDGenerator, timeSrc TimeSource) *Service {
	if dispatcher == nil {
		dispatcher = relay.NewDispatcher(0)
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		dispatcher:  dispatcher,
		extractor:   card.NewExtractorWithClock(timeSrc.Now),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameJunk   = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames and truncates them
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 6 || filenameJunk.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = filenameJunk.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "card"
	}

	return base + ext
}

// ScanCard stores a card image, reads its text and extracts the card fields
func (s *Service) ScanCard(ctx context.Context, filename string, data []byte, contentType string) (*CardScan, error) {
	if s.scanner == nil {
		return nil, ErrScannerUnavailable
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	text, err := s.scanner.ScanText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan card",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		scansTotal.WithLabelValues("scan_failed").Inc()
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning card: %w", err)
	}

	scan := &CardScan{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		Text:        text,
		Record:      s.extractor.Extract(text),
		CreatedAt:   now,
	}

	if err := s.db.SaveScan(scan); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	outcome := "extracted"
	if scan.Record.Empty() {
		outcome = "empty"
	}
	scansTotal.WithLabelValues(outcome).Inc()
	slog.Info("Scanned card", "scan_id", id, "fields", len(scan.Record.Fields()))

	return scan, nil
}

// ExtractText runs the extractor over already-recognised text. Nothing is stored.
func (s *Service) ExtractText(text string) *CardScan {
	return &CardScan{
		Text:      text,
		Record:    s.extractor.Extract(text),
		CreatedAt: s.timeSource.Now(),
	}
}

// GetScan retrieves a card scan by ID
func (s *Service) GetScan(id string) (*CardScan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all card scans
func (s *Service) ListScans() ([]*CardScan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a card scan and its image
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if scan.Filename != "" {
		if err := s.storage.Delete(scan.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", scan.Filename, "error", err)
		}
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}

// DeleteScansBefore removes every scan created before cutoff and returns how many were removed
func (s *Service) DeleteScansBefore(cutoff time.Time) (int, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return 0, fmt.Errorf("listing scans: %w", err)
	}

	removed := 0
	for _, scan := range scans {
		if !scan.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.DeleteScan(scan.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// GetScanImage retrieves the image for a card scan
func (s *Service) GetScanImage(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Get(scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan image: %w", err)
	}

	return data, scan.ContentType, nil
}

// SubmitLead validates, stores and relays an assessment.
// Visitors without benefits are redirected and nothing is stored. When the
// relays all fail the lead is still stored and returned with relay.ErrAllFailed.
func (s *Service) SubmitLead(ctx context.Context, form LeadForm) (*Lead, *Outcome, error) {
	form = form.normalize()

	if form.declinedBenefits() {
		leadsTotal.WithLabelValues("redirected").Inc()
		return nil, &Outcome{Redirect: Health811Path}, nil
	}

	if form.ScanID != "" {
		s.fillFromScan(&form)
	}

	if err := ValidateLead(form); err != nil {
		leadsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, err
	}

	now := s.timeSource.Now()
	lead := &Lead{
		ID:        s.idGenerator.Generate(),
		Form:      form,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.SaveLead(lead); err != nil {
		return nil, nil, fmt.Errorf("saving lead to database: %w", err)
	}

	result, dispatchErr := s.dispatcher.Dispatch(ctx, submission(lead))
	lead.Submission = result
	lead.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveLead(lead); err != nil {
		slog.Error("Failed to record relay result", "lead_id", lead.ID, "error", err)
	}

	if dispatchErr != nil {
		leadsTotal.WithLabelValues("relay_failed").Inc()
		slog.Error("Failed to relay lead", "lead_id", lead.ID, "error", dispatchErr)
		return lead, nil, fmt.Errorf("relaying lead: %w", dispatchErr)
	}

	leadsTotal.WithLabelValues("stored").Inc()
	slog.Info("Stored lead", "lead_id", lead.ID, "relays", len(result.Delivered))
	return lead, &Outcome{Redirect: ThankYouPath}, nil
}

// fillFromScan copies card fields the visitor left blank
func (s *Service) fillFromScan(form *LeadForm) {
	scan, err := s.db.GetScan(form.ScanID)
	if err != nil {
		slog.Warn("Lead references unknown scan", "scan_id", form.ScanID, "error", err)
		return
	}

	if form.MemberID == "" {
		form.MemberID = scan.Record.MemberID
	}
	if form.GroupNumber == "" {
		form.GroupNumber = scan.Record.GroupNumber
	}
	if form.Insurance == "" {
		form.Insurance = scan.Record.Provider
	}
}

// submission flattens a lead into the form field names the collectors were set up with
func submission(lead *Lead) relay.Submission {
	f := lead.Form
	fields := map[string]string{
		"lead_id":       lead.ID,
		"first_name":    f.FirstName,
		"last_name":     f.LastName,
		"date_of_birth": f.DateOfBirth,
		"email":         f.Email,
		"phone":         f.Phone,
		"province":      f.Province,
		"benefits":      f.Benefits,
		"insurance":     f.Insurance,
		"member-id":     f.MemberID,
		"group-number":  f.GroupNumber,
		"health_goals":  strings.Join(f.HealthGoals, ", "),
		"location":      f.Location,
		"specialty":     f.Specialty,
		"submitted_at":  lead.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}

	return relay.Submission{
		Subject:      leadSubject,
		AutoResponse: leadAutoResponse,
		FirstName:    f.FirstName,
		Email:        f.Email,
		Fields:       fields,
		SubmittedAt:  lead.CreatedAt,
	}
}

// GetLead retrieves a lead by ID
func (s *Service) GetLead(id string) (*Lead, error) {
	lead, err := s.db.GetLead(id)
	if err != nil {
		return nil, fmt.Errorf("getting lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns all leads, newest first
func (s *Service) ListLeads() ([]*Lead, error) {
	leads, err := s.db.ListLeads()
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	return leads, nil
}
