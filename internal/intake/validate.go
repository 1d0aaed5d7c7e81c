package intake

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// FormatPhone formats digits as (xxx) xxx-xxxx, progressively for partial input.
// Digits past the tenth are dropped.
func FormatPhone(value string) string {
	digits := nonDigits.ReplaceAllString(value, "")
	switch {
	case len(digits) == 0:
		return ""
	case len(digits) <= 3:
		return "(" + digits
	case len(digits) <= 6:
		return "(" + digits[:3] + ") " + digits[3:]
	case len(digits) > 10:
		digits = digits[:10]
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}

// hasBenefits reports whether the visitor said they have insurance benefits
func (f LeadForm) hasBenefits() bool {
	return strings.EqualFold(strings.TrimSpace(f.Benefits), "yes")
}

// declinedBenefits reports whether the visitor said they have no benefits
func (f LeadForm) declinedBenefits() bool {
	return strings.EqualFold(strings.TrimSpace(f.Benefits), "no")
}

// normalize trims every field and formats the phone number
func (f LeadForm) normalize() LeadForm {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.DateOfBirth = strings.TrimSpace(f.DateOfBirth)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = FormatPhone(f.Phone)
	f.Province = strings.TrimSpace(f.Province)
	f.Benefits = strings.TrimSpace(f.Benefits)
	f.Insurance = strings.TrimSpace(f.Insurance)
	f.MemberID = strings.TrimSpace(f.MemberID)
	f.GroupNumber = strings.TrimSpace(f.GroupNumber)
	f.Location = strings.TrimSpace(f.Location)
	f.Specialty = strings.TrimSpace(f.Specialty)
	f.ScanID = strings.TrimSpace(f.ScanID)

	goals := make([]string, 0, len(f.HealthGoals))
	for _, g := range f.HealthGoals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}
	f.HealthGoals = goals
	return f
}

// ValidateLead checks the form the way the assessment page does.
// It returns a *ValidationError naming every failing field.
func ValidateLead(form LeadForm) error {
	f := form.normalize()
	errs := map[string]string{}

	required := []struct {
		key, value, message string
	}{
		{"first_name", f.FirstName, "First name is required"},
		{"last_name", f.LastName, "Last name is required"},
		{"date_of_birth", f.DateOfBirth, "Date of birth is required"},
		{"email", f.Email, "Email is required"},
		{"phone", f.Phone, "Phone number is required"},
		{"province", f.Province, "Province is required"},
		{"benefits", f.Benefits, "Benefits information is required"},
	}
	if f.hasBenefits() {
		required = append(required,
			struct{ key, value, message string }{"insurance", f.Insurance, "Insurance provider is required"},
			struct{ key, value, message string }{"member_id", f.MemberID, "Member ID is required"},
			struct{ key, value, message string }{"group_number", f.GroupNumber, "Group number is required"},
		)
	}
	for _, r := range required {
		if r.value == "" {
			errs[r.key] = r.message
		}
	}

	if f.Email != "" && !emailPattern.MatchString(f.Email) {
		errs["email"] = "Please enter a valid email address"
	}
	if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
		errs["phone"] = "Please enter a valid Canadian phone number: (___) ___-____"
	}
	if len(f.HealthGoals) == 0 {
		errs["health_goals"] = "Please select at least one health goal"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
