package card

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// providerName maps a lowercase fragment found on a card to the insurer's display name
type providerName struct {
	fragment string
	display  string
}

// providerNames is ordered: the first fragment contained in a candidate wins
var providerNames = []providerName{
	{"canada life", "Canada Life"},
	{"great-west life", "Great-West Life"},
	{"manulife", "Manulife"},
	{"sun life", "Sun Life Financial"},
	{"blue cross", "Blue Cross"},
	{"desjardins", "Desjardins Insurance"},
	{"industrial alliance", "Industrial Alliance"},
	{"medavie", "Medavie Blue Cross"},
	{"greenshield", "Green Shield Canada"},
	{"green shield", "Green Shield Canada"},
	{"gsc", "Green Shield Canada"},
}

// providerMatcher finds every fragment of providerNames in one pass.
// The matcher keeps per-call state, so calls are serialized.
var providerMatcher = struct {
	sync.Mutex
	m *ahocorasick.Matcher
}{m: newProviderMatcher()}

func newProviderMatcher() *ahocorasick.Matcher {
	fragments := make([]string, len(providerNames))
	for i, p := range providerNames {
		fragments[i] = p.fragment
	}
	return ahocorasick.NewStringMatcher(fragments)
}

// CanonicalProvider maps an insurer name to its display form.
// Names that contain no known fragment are returned unchanged.
func CanonicalProvider(name string) string {
	providerMatcher.Lock()
	hits := providerMatcher.m.Match([]byte(strings.ToLower(name)))
	providerMatcher.Unlock()

	if len(hits) == 0 {
		return name
	}

	first := hits[0]
	for _, idx := range hits[1:] {
		if idx < first {
			first = idx
		}
	}
	return providerNames[first].display
}

// Providers returns the distinct insurer display names in table order
func Providers() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range providerNames {
		if !seen[p.display] {
			seen[p.display] = true
			names = append(names, p.display)
		}
	}
	return names
}
