package card

import (
	"log/slog"
	"strings"
	"time"
)

// Extractor reads card fields out of OCR text.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an Extractor that uses the wall clock for expiry checks
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// NewExtractorWithClock creates an Extractor with a custom clock for testing
func NewExtractorWithClock(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

var defaultExtractor = NewExtractor()

// Extract reads card fields out of text using the wall clock
func Extract(text string) Record {
	return defaultExtractor.Extract(text)
}

// Extract reads card fields out of text.
// Fields that cannot be found are left empty; it never fails.
func (e *Extractor) Extract(text string) Record {
	lines := splitLines(text)

	var record Record
	for _, fr := range rules {
		if value, ok := matchField(fr, lines); ok {
			record.set(fr.field, value)
		}
	}

	if record.ExpiryDate != "" {
		expired := IsExpired(record.ExpiryDate, e.now())
		record.IsExpired = &expired
	}

	return record
}

// matchField walks rules in order and, for each rule, lines in order.
// The first accepted candidate wins.
func matchField(fr fieldRules, lines []string) (string, bool) {
	for i, rule := range fr.rules {
		for _, line := range lines {
			m := rule.Pattern.FindStringSubmatch(line)
			if m == nil || len(m) < 2 {
				continue
			}

			raw := strings.TrimSpace(m[1])
			if raw == "" {
				continue
			}

			value, ok := rule.Process(raw)
			if !ok || value == "" {
				slog.Debug("Rejected card field candidate", "field", fr.field, "rule", i)
				continue
			}

			slog.Debug("Extracted card field", "field", fr.field, "rule", i)
			return value, true
		}
	}
	return "", false
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
