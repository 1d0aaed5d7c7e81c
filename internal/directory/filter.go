package directory

import (
	"net/url"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Sort orders
const (
	SortName       = "name"
	SortRating     = "rating"
	SortExperience = "experience"
)

// Filter is the set of listing filters carried in the query string
type Filter struct {
	Location           string   `json:"location,omitempty"`
	Insurance          string   `json:"insurance,omitempty"`
	Specialty          string   `json:"specialty,omitempty"`
	Modalities         string   `json:"modalities,omitempty"`
	VisitType          string   `json:"visitType,omitempty"`
	Sort               string   `json:"sort,omitempty"`
	Query              string   `json:"q,omitempty"`
	SidebarSpecialties []string `json:"sidebarSpecialties,omitempty"`
}

// ParseFilter reads a Filter from query parameters
func ParseFilter(v url.Values) Filter {
	f := Filter{
		Location:   strings.TrimSpace(v.Get("location")),
		Insurance:  strings.TrimSpace(v.Get("insurance")),
		Specialty:  strings.TrimSpace(v.Get("specialty")),
		Modalities: strings.TrimSpace(v.Get("modalities")),
		VisitType:  strings.TrimSpace(v.Get("visitType")),
		Sort:       strings.TrimSpace(v.Get("sort")),
		Query:      strings.TrimSpace(v.Get("q")),
	}
	for _, s := range strings.Split(v.Get("sidebarSpecialties"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.SidebarSpecialties = append(f.SidebarSpecialties, s)
		}
	}
	return f
}

// Encode writes the non-empty filters back as query parameters
func (f Filter) Encode() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("location", f.Location)
	set("insurance", f.Insurance)
	set("specialty", f.Specialty)
	set("modalities", f.Modalities)
	set("visitType", f.VisitType)
	set("sort", f.Sort)
	set("q", f.Query)
	if len(f.SidebarSpecialties) > 0 {
		v.Set("sidebarSpecialties", strings.Join(f.SidebarSpecialties, ","))
	}
	return v
}

// Match reports whether p passes every filter that is set.
// Location must match exactly; list filters match a substring of the joined list.
func (f Filter) Match(p Provider) bool {
	if f.Location != "" && p.Location != f.Location {
		return false
	}
	if !contains(p.Insurance, f.Insurance) {
		return false
	}
	if !contains(p.Specialties, f.Specialty) {
		return false
	}
	for _, s := range f.SidebarSpecialties {
		if !contains(p.Specialties, s) {
			return false
		}
	}
	if !contains(p.Modalities, f.Modalities) {
		return false
	}
	if !contains(p.VisitTypes, f.VisitType) {
		return false
	}
	if f.Query != "" && !fuzzy.MatchFold(f.Query, p.Name) {
		return false
	}
	return true
}

// contains is true for an empty want
func contains(list []string, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.Join(list, ", "), want)
}
