// Package directory lists the dietitians a visitor can be matched with.
package directory

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var providersYAML []byte

// Provider is one dietitian in the listing
type Provider struct {
	Name            string   `yaml:"name" json:"name"`
	Credentials     string   `yaml:"credentials" json:"credentials"`
	Location        string   `yaml:"location" json:"location"`
	Insurance       []string `yaml:"insurance" json:"insurance"`
	Specialties     []string `yaml:"specialties" json:"specialties"`
	Modalities      []string `yaml:"modalities" json:"modalities"`
	VisitTypes      []string `yaml:"visit_types" json:"visitTypes"`
	Rating          float64  `yaml:"rating" json:"rating"`
	YearsExperience int      `yaml:"years_experience" json:"yearsExperience"`
}

// Listing is the result of a search
type Listing struct {
	Providers     []Provider `json:"providers"`
	Count         int        `json:"count"`
	LocationLabel string     `json:"locationLabel"`
	Filter        Filter     `json:"filter"`
}

// Directory holds the provider list in file order
type Directory struct {
	providers []Provider
}

// Load parses a YAML provider list
func Load(data []byte) (*Directory, error) {
	var providers []Provider
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing provider directory: %w", err)
	}
	return &Directory{providers: providers}, nil
}

// Builtin loads the embedded provider list
func Builtin() (*Directory, error) {
	return Load(providersYAML)
}

// Len returns the number of providers
func (d *Directory) Len() int {
	return len(d.providers)
}

// Search returns the providers that match f, ordered by f.Sort
func (d *Directory) Search(f Filter) Listing {
	matched := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if f.Match(p) {
			matched = append(matched, p)
		}
	}

	sortProviders(matched, f)

	return Listing{
		Providers:     matched,
		Count:         len(matched),
		LocationLabel: locationLabel(f.Location),
		Filter:        f,
	}
}

func locationLabel(location string) string {
	if location == "" {
		return "Canada"
	}
	return location + ", Canada"
}

func sortProviders(providers []Provider, f Filter) {
	switch f.Sort {
	case SortName:
		sort.SliceStable(providers, func(i, j int) bool {
			return providers[i].Name < providers[j].Name
		})
	case SortRating:
		sort.SliceStable(providers, func(i, j int) bool {
			return providers[i].Rating > providers[j].Rating
		})
	case SortExperience:
		sort.SliceStable(providers, func(i, j int) bool {
			return providers[i].YearsExperience > providers[j].YearsExperience
		})
	default:
		// Closest name first when searching by name
		if f.Query != "" {
			sort.SliceStable(providers, func(i, j int) bool {
				return fuzzy.RankMatchFold(f.Query, providers[i].Name) < fuzzy.RankMatchFold(f.Query, providers[j].Name)
			})
		}
	}
}
