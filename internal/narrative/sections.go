package narrative

import (
	"strings"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/extract"
)

type SectionKey string

const (
	Background        SectionKey = "background"
	CaregiverConcerns SectionKey = "caregiver_concerns"
	Observations      SectionKey = "observations"
	Summary           SectionKey = "summary"
	Recommendations   SectionKey = "recommendations"
	Goals             SectionKey = "goals"
)

// CoreSections are required for every report regardless of instruments.
var CoreSections = []SectionKey{Background, CaregiverConcerns, Observations, Summary, Recommendations, Goals}

const interpretationPrefix = "interpretation_"

// InterpretationKey names the narrative paragraph for one instrument.
func InterpretationKey(inst extract.Instrument) SectionKey {
	return SectionKey(interpretationPrefix + string(inst))
}

// Marker is the bracketed tag the consolidated prompt asks for.
func (k SectionKey) Marker() string {
	return "[" + strings.ToUpper(string(k)) + "]"
}

// RequiredKeys lists core sections followed by one interpretation per
// analysed instrument.
func RequiredKeys(an analysis.Analysis) []SectionKey {
	keys := append([]SectionKey{}, CoreSections...)
	for _, inst := range an.Order {
		keys = append(keys, InterpretationKey(inst))
	}
	return keys
}

type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

type State string

const (
	StatePromptBuilt         State = "PROMPT_BUILT"
	StateGenerationRequested State = "GENERATION_REQUESTED"
	StateParseOK             State = "PARSE_OK"
	StateParseFailed         State = "PARSE_FAILED"
	StateGenerationFailed    State = "GENERATION_FAILED"
	StateResolved            State = "RESOLVED"
)

type Section struct {
	Key    SectionKey `json:"key"`
	Text   string     `json:"text"`
	Source Source     `json:"source"`
	Trace  []State    `json:"trace"`
	Reason string     `json:"reason,omitempty"`
}

// Sections holds one resolved entry per required key, in request order.
type Sections struct {
	Items []Section `json:"items"`
}

func (s Sections) Get(key SectionKey) (Section, bool) {
	for _, it := range s.Items {
		if it.Key == key {
			return it, true
		}
	}
	return Section{}, false
}

// Text returns the resolved text for key or "" when the key was not required.
func (s Sections) Text(key SectionKey) string {
	it, _ := s.Get(key)
	return it.Text
}

// Sources maps each key to where its text came from.
func (s Sections) Sources() map[string]Source {
	out := make(map[string]Source, len(s.Items))
	for _, it := range s.Items {
		out[string(it.Key)] = it.Source
	}
	return out
}

// FallbackCount reports how many sections used deterministic text.
func (s Sections) FallbackCount() int {
	n := 0
	for _, it := range s.Items {
		if it.Source == SourceFallback {
			n++
		}
	}
	return n
}
