package analysis

import (
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/scoring"
)

type Pattern string

const (
	PatternNone         Pattern = ""
	PatternBelowAverage Pattern = "below-average"
	PatternMixed        Pattern = "mixed"
	PatternAboveAverage Pattern = "above-average"
)

type DomainResult struct {
	Domain            string                        `json:"domain"`
	Score             extract.DomainScore           `json:"score"`
	Interpretation    *scoring.DomainInterpretation `json:"interpretation,omitempty"`
	Descriptor        *scoring.Descriptor           `json:"descriptor,omitempty"`
	PrintedDescriptor string                        `json:"printed_descriptor,omitempty"`
}

// Classification is the short label shown in score tables.
func (d DomainResult) Classification() string {
	switch {
	case d.Interpretation != nil:
		return string(d.Interpretation.Classification)
	case d.PrintedDescriptor != "":
		return d.PrintedDescriptor
	case d.Descriptor != nil:
		return d.Descriptor.Classification
	}
	return ""
}

type InstrumentAnalysis struct {
	Instrument    extract.Instrument                `json:"instrument"`
	Method        extract.Method                    `json:"method"`
	Domains       []DomainResult                    `json:"domains"`
	Composites    []scoring.CompositeInterpretation `json:"composites,omitempty"`
	Pattern       Pattern                           `json:"pattern,omitempty"`
	AverageScaled float64                           `json:"average_scaled,omitempty"`
	// Concerns are feeding-concern sentences quoted from the protocol.
	Concerns []string `json:"concerns,omitempty"`
	// Unparsed is set when text was supplied but no score could be read.
	Unparsed bool `json:"unparsed,omitempty"`
}

// Interpretations returns the scaled-score interpretations in encounter order.
func (ia InstrumentAnalysis) Interpretations() []scoring.DomainInterpretation {
	var out []scoring.DomainInterpretation
	for _, d := range ia.Domains {
		if d.Interpretation != nil {
			out = append(out, *d.Interpretation)
		}
	}
	return out
}

// Analysis is read-only once Analyze returns it.
type Analysis struct {
	Instruments              map[extract.Instrument]InstrumentAnalysis `json:"instruments"`
	Order                    []extract.Instrument                      `json:"order"`
	OverallPattern           string                                    `json:"overall_pattern"`
	Strengths                []string                                  `json:"strengths"`
	Needs                    []string                                  `json:"needs"`
	ConcernHints             []string                                  `json:"concern_hints"`
	SensoryImplications      []string                                  `json:"sensory_implications,omitempty"`
	FeedingRisks             []string                                  `json:"feeding_risks,omitempty"`
	FeedingRecommendations   []string                                  `json:"feeding_recommendations,omitempty"`
	SafetyConcerns           []string                                  `json:"safety_concerns,omitempty"`
	EnduranceConcerns        []string                                  `json:"endurance_concerns,omitempty"`
	Observations             []string                                  `json:"observations,omitempty"`
	NoteBullets              []string                                  `json:"note_bullets,omitempty"`
	ExtractedRecommendations []string                                  `json:"extracted_recommendations,omitempty"`
	DocumentedStrengths      []string                                  `json:"documented_strengths,omitempty"`
	DocumentedNeeds          []string                                  `json:"documented_needs,omitempty"`
}

// Has reports whether the instrument contributed to the analysis.
func (a Analysis) Has(inst extract.Instrument) bool {
	_, ok := a.Instruments[inst]
	return ok
}
