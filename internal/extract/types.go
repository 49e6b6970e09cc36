// Package extract turns raw instrument text into structured scores and
// free-text fragments. Extraction never fails: anything it cannot read is
// simply absent from the result.
package extract

import (
	"fmt"
	"strings"

	"github.com/joelkehle/otreport/internal/patient"
)

type Instrument string

const (
	Facesheet      Instrument = "facesheet"
	Cognitive      Instrument = "cognitive"
	SocialAdaptive Instrument = "social_adaptive"
	Sensory        Instrument = "sensory"
	FeedingA       Instrument = "feeding_a"
	FeedingB       Instrument = "feeding_b"
	ClinicalNotes  Instrument = "clinical_notes"
)

// Instruments lists every accepted input key in report priority order.
var Instruments = []Instrument{Facesheet, Cognitive, SocialAdaptive, Sensory, FeedingA, FeedingB, ClinicalNotes}

// ParseInstrument validates an input key.
func ParseInstrument(key string) (Instrument, error) {
	k := Instrument(strings.ToLower(strings.TrimSpace(key)))
	for _, inst := range Instruments {
		if inst == k {
			return inst, nil
		}
	}
	return "", fmt.Errorf("unknown instrument key %q", key)
}

// Scored reports whether the instrument carries a domain score table.
func (i Instrument) Scored() bool {
	_, ok := profiles[i]
	return ok
}

// Title is the display name used in report headings.
func (i Instrument) Title() string {
	if p, ok := profiles[i]; ok {
		return p.Title
	}
	switch i {
	case Facesheet:
		return "Facesheet"
	case ClinicalNotes:
		return "Clinical Notes"
	}
	return string(i)
}

// Method records which extraction path produced the domain scores.
type Method string

const (
	MethodNone     Method = "none"
	MethodPrimary  Method = "primary"
	MethodLineScan Method = "line-scan"
)

type DomainScore struct {
	RawScore      *int   `json:"raw_score,omitempty"`
	ScaledScore   *int   `json:"scaled_score,omitempty"`
	Percentile    *int   `json:"percentile,omitempty"`
	AgeEquivalent string `json:"age_equivalent,omitempty"`
}

func (d DomainScore) empty() bool {
	return d.RawScore == nil && d.ScaledScore == nil && d.Percentile == nil && d.AgeEquivalent == ""
}

// Value returns the scaled score when present, otherwise the raw score.
func (d DomainScore) Value() (int, bool) {
	if d.ScaledScore != nil {
		return *d.ScaledScore, true
	}
	if d.RawScore != nil {
		return *d.RawScore, true
	}
	return 0, false
}

// Fragments are free-text snippets lifted from the instrument text.
type Fragments struct {
	Observations    []string `json:"observations,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	Needs           []string `json:"needs,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Concerns        []string `json:"concerns,omitempty"`
	Safety          []string `json:"safety,omitempty"`
	Implications    []string `json:"implications,omitempty"`
	Bullets         []string `json:"bullets,omitempty"`
	Narratives      []string `json:"narratives,omitempty"`
}

type InstrumentRaw struct {
	Instrument   Instrument             `json:"instrument"`
	Domains      map[string]DomainScore `json:"domains"`
	Order        []string               `json:"order"`
	Composites   map[string]int         `json:"composites"`
	Descriptors  map[string]string      `json:"descriptors"`
	Fragments    Fragments              `json:"fragments"`
	Demographics patient.Input          `json:"demographics"`
	Method       Method                 `json:"method"`
	SourceChars  int                    `json:"source_chars"`
}

func newInstrumentRaw(inst Instrument) InstrumentRaw {
	return InstrumentRaw{
		Instrument:  inst,
		Domains:     map[string]DomainScore{},
		Order:       []string{},
		Composites:  map[string]int{},
		Descriptors: map[string]string{},
		Method:      MethodNone,
	}
}

// Present reports whether any source text was supplied for the instrument.
func (r InstrumentRaw) Present() bool {
	return r.SourceChars > 0
}

// OrderedComposites returns composite names in canonical order followed by
// any others in name order.
func (r InstrumentRaw) OrderedComposites() []string {
	var out []string
	seen := map[string]bool{}
	if p, ok := profiles[r.Instrument]; ok {
		for _, c := range p.Composites {
			if _, ok := r.Composites[c]; ok {
				out = append(out, c)
				seen[c] = true
			}
		}
	}
	var rest []string
	for c := range r.Composites {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sortStrings(rest)
	return append(out, rest...)
}

func (r *InstrumentRaw) set(domain string, score DomainScore) {
	if _, exists := r.Domains[domain]; exists {
		return
	}
	r.Domains[domain] = score
	r.Order = append(r.Order, domain)
}
