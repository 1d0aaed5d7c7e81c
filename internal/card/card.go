// Package card turns OCR text from an insurance card into a structured record.
package card

// Field names a value that can be read off an insurance card
type Field string

const (
	FieldMemberName  Field = "memberName"
	FieldMemberID    Field = "memberID"
	FieldGroupNumber Field = "groupNumber"
	FieldProvider    Field = "provider"
	FieldExpiryDate  Field = "expiryDate"
	FieldPlanNumber  Field = "planNumber"
)

// Fields lists every card field in extraction order
var Fields = []Field{
	FieldMemberName,
	FieldMemberID,
	FieldGroupNumber,
	FieldProvider,
	FieldExpiryDate,
	FieldPlanNumber,
}

// Record holds the values extracted from a card.
// An empty string means the field was not found. IsExpired is set if and only if
// ExpiryDate is set.
type Record struct {
	MemberName  string `json:"memberName,omitempty"`
	MemberID    string `json:"memberID,omitempty"`
	GroupNumber string `json:"groupNumber,omitempty"`
	Provider    string `json:"provider,omitempty"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	PlanNumber  string `json:"planNumber,omitempty"`
	IsExpired   *bool  `json:"isExpired,omitempty"`
}

// Get returns the value recorded for a field
func (r Record) Get(f Field) string {
	switch f {
	case FieldMemberName:
		return r.MemberName
	case FieldMemberID:
		return r.MemberID
	case FieldGroupNumber:
		return r.GroupNumber
	case FieldProvider:
		return r.Provider
	case FieldExpiryDate:
		return r.ExpiryDate
	case FieldPlanNumber:
		return r.PlanNumber
	}
	return ""
}

func (r *Record) set(f Field, value string) {
	switch f {
	case FieldMemberName:
		r.MemberName = value
	case FieldMemberID:
		r.MemberID = value
	case FieldGroupNumber:
		r.GroupNumber = value
	case FieldProvider:
		r.Provider = value
	case FieldExpiryDate:
		r.ExpiryDate = value
	case FieldPlanNumber:
		r.PlanNumber = value
	}
}

// Empty reports whether no field was found
func (r Record) Empty() bool {
	return len(r.Fields()) == 0
}

// Fields returns the found fields keyed by field name
func (r Record) Fields() map[string]string {
	out := make(map[string]string)
	for _, f := range Fields {
		if v := r.Get(f); v != "" {
			out[string(f)] = v
		}
	}
	return out
}

// Expired reports whether the card carries an expiry date in the past
func (r Record) Expired() bool {
	return r.IsExpired != nil && *r.IsExpired
}
