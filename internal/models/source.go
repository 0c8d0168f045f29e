package models

import "strings"

// DateLayout is the on-disk format of every last_checked value.
const DateLayout = "2006-01-02"

type Cadence string

const (
	CadenceContinuous Cadence = "continuous"
	CadenceQuarterly  Cadence = "quarterly"
	CadenceAnnual     Cadence = "annual"
	CadenceBiennial   Cadence = "biennial"
	CadencePeriodic   Cadence = "periodic"
	CadenceStatic     Cadence = "static"
)

// ParseCadence normalizes a catalog tag. Unknown tags are kept verbatim.
func ParseCadence(s string) Cadence {
	return Cadence(strings.ToLower(strings.TrimSpace(s)))
}

// Source is one catalog record. Only LastChecked is ever written back.
type Source struct {
	ID              string  `yaml:"source_id" validate:"required"`
	URL             string  `yaml:"url" validate:"required,url,startswith=http"`
	Title           string  `yaml:"title,omitempty"`
	Owner           string  `yaml:"owner,omitempty"`
	Category        string  `yaml:"category,omitempty"`
	UpdateFrequency Cadence `yaml:"update_frequency,omitempty"`
	LastChecked     string  `yaml:"last_checked,omitempty"`
	Static          bool    `yaml:"static,omitempty"`
}

// Label is what we show in logs and tables.
func (s Source) Label() string {
	if s.Title == "" {
		return s.ID
	}
	return s.Title
}
