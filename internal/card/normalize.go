package card

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nameSeparators = regexp.MustCompile(`[,\s]+`)
	nameWord       = regexp.MustCompile(`^[A-Za-z][A-Za-z'.-]*$`)

	multiSpace     = regexp.MustCompile(`\s{2,}`)
	anySpace       = regexp.MustCompile(`\s+`)
	memberIDSpaced = regexp.MustCompile(`^[A-Z0-9\s-]{6,25}$`)
	memberIDPlain  = regexp.MustCompile(`^[A-Z0-9-]{6,25}$`)

	dateNoise    = regexp.MustCompile(`[^0-9/-]`)
	monthDayYear = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
	monthYear    = regexp.MustCompile(`^(\d{1,2})[/-](\d{2,4})$`)
	yearMonthDay = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
)

// nameStopWords are card vocabulary that OCR often puts where a name would be
var nameStopWords = map[string]bool{
	"card":      true,
	"insurance": true,
	"policy":    true,
	"plan":      true,
	"group":     true,
	"exp":       true,
	"expires":   true,
	"id":        true,
	"number":    true,
	"coverage":  true,
	"benefits":  true,
}

const maxNameWords = 4

// NormalizeName validates a member name candidate and title-cases it.
// It returns false when the candidate does not look like a person's name.
func NormalizeName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return "", false
	}

	clean := nameSeparators.ReplaceAllString(name, " ")

	var words []string
	for _, w := range strings.Fields(clean) {
		if !nameStopWords[strings.ToLower(w)] {
			words = append(words, w)
		}
	}
	if len(words) == 0 || len(words) > maxNameWords {
		return "", false
	}

	valid := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 20 || !nameWord.MatchString(w) {
			continue
		}
		valid = append(valid, strings.ToUpper(w[:1])+strings.ToLower(w[1:]))
	}
	if len(valid) == 0 {
		return "", false
	}

	return strings.Join(valid, " "), true
}

// NormalizeMemberID uppercases and tidies a member ID.
// IDs that fail both shape checks are returned exactly as given.
func NormalizeMemberID(id string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(multiSpace.ReplaceAllString(id, " ")))
	if memberIDSpaced.MatchString(cleaned) {
		return cleaned
	}

	stripped := anySpace.ReplaceAllString(cleaned, "")
	if memberIDPlain.MatchString(stripped) {
		return stripped
	}

	return id
}

// NormalizeExpiryDate rewrites a recognised date as MM/DD/YYYY.
// Month/year dates get day 01. Unrecognised input is returned unchanged.
func NormalizeExpiryDate(date string) string {
	clean := dateNoise.ReplaceAllString(date, "")

	if m := monthDayYear.FindStringSubmatch(clean); m != nil {
		return formatDate(m[1], m[2], m[3])
	}
	if m := monthYear.FindStringSubmatch(clean); m != nil {
		return formatDate(m[1], "01", m[2])
	}
	if m := yearMonthDay.FindStringSubmatch(clean); m != nil {
		return formatDate(m[2], m[3], m[1])
	}

	return date
}

func formatDate(month, day, year string) string {
	if len(year) == 2 {
		year = "20" + year
	}
	return fmt.Sprintf("%s/%s/%s", pad2(month), pad2(day), year)
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// IsExpired reports whether an MM/DD/YYYY date lies before now.
// Dates that do not parse are treated as not expired.
func IsExpired(date string, now time.Time) bool {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return false
		}
		nums[i] = n
	}

	expiry := time.Date(nums[2], time.Month(nums[0]), nums[1], 0, 0, 0, 0, now.Location())
	return expiry.Before(now)
}
