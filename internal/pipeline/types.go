package pipeline

import (
	"time"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/narrative"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/report"
)

// Request is one evaluation: caller demographics plus the text of every
// supplied instrument. Missing keys mean the instrument was not administered.
type Request struct {
	SessionID string                        `json:"session_id,omitempty"`
	Patient   patient.Input                 `json:"patient"`
	Texts     map[extract.Instrument]string `json:"texts"`
}

type Result struct {
	Request   Request                                      `json:"request"`
	Record    patient.Record                               `json:"record"`
	Raw       map[extract.Instrument]extract.InstrumentRaw `json:"raw"`
	Analysis  analysis.Analysis                            `json:"analysis"`
	Sections  narrative.Sections                           `json:"sections"`
	Fragments []narrative.Fragment                         `json:"fragments,omitempty"`
	Document  report.Document                              `json:"document"`
	Metadata  Metadata                                     `json:"metadata"`
}

type Metadata struct {
	SessionID           string                            `json:"session_id"`
	Revision            int                               `json:"revision,omitempty"`
	StartedAt           time.Time                         `json:"started_at"`
	CompletedAt         time.Time                         `json:"completed_at"`
	StagesExecuted      []string                          `json:"stages_executed"`
	StageTimings        map[string]int64                  `json:"stage_timings_ms"`
	SectionSources      map[string]narrative.Source       `json:"section_sources"`
	FallbackSections    int                               `json:"fallback_sections"`
	FragmentPaths       map[string]narrative.FragmentPath `json:"fragment_paths,omitempty"`
	ExtractionMethods   map[string]extract.Method         `json:"extraction_methods"`
	UnparsedInstruments []string                          `json:"unparsed_instruments,omitempty"`
	Generator           string                            `json:"generator"`
}
