package card

import "regexp"

// Processor validates and normalizes a raw capture.
// Returning false rejects the candidate and the search for the field continues.
type Processor func(raw string) (string, bool)

// Rule pairs a pattern with the processor applied to its first capture group
type Rule struct {
	Pattern *regexp.Regexp
	Process Processor
}

// fieldRules is the ordered rule list for one field.
// Earlier rules win over later ones regardless of which line they match.
type fieldRules struct {
	field Field
	rules []Rule
}

func accept(raw string) (string, bool) {
	return raw, true
}

func acceptMemberID(raw string) (string, bool) {
	return NormalizeMemberID(raw), true
}

func acceptExpiryDate(raw string) (string, bool) {
	return NormalizeExpiryDate(raw), true
}

func acceptProvider(raw string) (string, bool) {
	return CanonicalProvider(raw), true
}

func compile(process Processor, patterns ...string) []Rule {
	rules := make([]Rule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, Rule{Pattern: regexp.MustCompile(p), Process: process})
	}
	return rules
}

// rules is built once and never modified
var rules = []fieldRules{
	{
		field: FieldMemberName,
		rules: compile(NormalizeName,
			// labeled
			`(?i)(?:member name|employee name|name|cardholder|member)[\s:]*([A-Z][a-z]+(?:\s+[A-Z]?[a-z]+)*)`,
			`(?i)(?:employee|covered person|beneficiary)[\s:]*([A-Z][a-z]+(?:\s+[A-Z]?[a-z]+)*)`,
			// whole line
			`^([A-Z][A-Z\s]*[A-Z])$`,
			`^([A-Z][a-z]+(?:\s+[A-Z][a-z]*){1,3})$`,
			// honorific
			`(?i)(?:mr|ms|mrs|dr|miss)[\s.]*([A-Z][a-z]+(?:\s+[A-Z]?[a-z]*)*)`,
			// "Last, First" and "First M. Last"
			`([A-Z][a-z]+[,\s]+[A-Z][a-z]+)`,
			`([A-Z][a-z]+(?:\s+[A-Z](?:\.|[a-z]+))*\s+[A-Z][a-z]+)`,
			// generic
			`\b([A-Z][a-z]+(?:\s+[A-Z]?[a-z]+){1,3})\b`,
			`\b([A-Z][a-z]{3,})\b`,
			`^([a-z]+(?:\s+[a-z]+){1,3})$`,
		),
	},
	{
		field: FieldMemberID,
		rules: compile(acceptMemberID,
			`(?i)(?:member id|member|id|policy|certificate|plan id)[\s#:]*([A-Z0-9-]{6,25})`,
			// trailing -00 style suffix
			`(?i)(?:member id|member|id)[\s#:]*([A-Z0-9-]+-[0-9]{2,3})`,
			`(?i)\b([A-Z]{2,4}[0-9]{6,12}-?[0-9]{0,3})\b`,
			`\b([0-9]{8,16}-?[0-9]{0,3})\b`,
			// segmented
			`(?i)\b([A-Z0-9]{2,4}[-\s][A-Z0-9]{3,8}[-\s][A-Z0-9]{2,8})\b`,
			`(?i)\b([A-Z0-9]{3,}-[0-9]{2,3})\b`,
			`(?i)\b([A-Z0-9-]{8,25})\b`,
		),
	},
	{
		field: FieldGroupNumber,
		rules: compile(accept,
			`(?i)(?:group number|group no|group|grp)[\s#:]*([A-Z0-9-]{3,12})`,
			`(?i)\b(GRP[A-Z0-9-]{3,10})\b`,
		),
	},
	{
		field: FieldProvider,
		rules: compile(acceptProvider,
			`(?i)\b(canada life|great-west life|manulife|sun life|blue cross|desjardins|industrial alliance|medavie|greenshield|green shield|gsc)\b`,
		),
	},
	{
		field: FieldExpiryDate,
		rules: compile(acceptExpiryDate,
			`(?i)(?:expiry|expires|exp|valid until)[\s:]*([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4})`,
			`(?i)(?:expiry|expires|exp|valid until)[\s:]*([0-9]{4}[/-][0-9]{1,2}[/-][0-9]{1,2})`,
			// year first ahead of month/year, which would take the month and day of 2024/03/05
			`\b([0-9]{4}[/-][0-9]{1,2}[/-][0-9]{1,2})\b`,
			`\b([0-9]{1,2}[/-][0-9]{2,4})\b`,
		),
	},
	{
		field: FieldPlanNumber,
		rules: compile(accept,
			`(?i)(?:plan number|plan no|plan)[\s#:]*([A-Z0-9-]{3,12})`,
		),
	},
}
