// Package profiles holds the profile model and seed resolution: looking up
// known profiles, fetching unknown ones from upstream sources, and keeping
// per-signal average embeddings current.
package profiles

import (
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// Profile is one person, merged across upstream sources.
type Profile struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Location  string   `json:"location,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	JobTitles []string `json:"job_titles,omitempty"`
	Companies []string `json:"companies,omitempty"`
	Schools   []string `json:"schools,omitempty"`
	Fields    []string `json:"fields_of_study,omitempty"`

	// Sources lists which upstream systems contributed data.
	Sources []string `json:"sources,omitempty"`

	Activeness rank.ActivenessMetrics `json:"activeness"`

	// Embeddings holds the per-signal average embedding: the unweighted mean
	// over every distinct attribute value contributing to that signal.
	// Recomputed, never appended, when the attribute set changes.
	Embeddings map[rank.Signal][]float32 `json:"-"`
}

// AttributeValues returns the raw attribute values feeding sig.
func (p *Profile) AttributeValues(sig rank.Signal) []string {
	switch sig {
	case rank.SignalSkills:
		return p.Skills
	case rank.SignalJobTitles:
		return p.JobTitles
	case rank.SignalCompanies:
		return p.Companies
	case rank.SignalSchools:
		return p.Schools
	case rank.SignalFields:
		return p.Fields
	case rank.SignalLocation:
		if p.Location == "" {
			return nil
		}
		return []string{p.Location}
	}
	return nil
}

// HasSource reports whether name contributed data to this profile.
func (p *Profile) HasSource(name string) bool {
	for _, s := range p.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// addSource records name in the provenance set.
func (p *Profile) addSource(name string) {
	if !p.HasSource(name) {
		p.Sources = append(p.Sources, name)
	}
}
