// Package analysis derives clinical findings from extracted instrument
// scores: per-domain interpretations, category patterns, strengths and
// needs, and threshold-based feeding and sensory findings.
package analysis

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/scoring"
)

const (
	maxStrengths    = 3
	maxNeeds        = 4
	maxConcernHints = 4

	strengthFloor  = 10
	needCeiling    = 8
	concernCeiling = 7

	belowAverageMean = 7.0
	aboveAverageMean = 13.0

	defaultPattern = "comprehensive developmental evaluation across multiple domains"
)

// developmental categories in the order strengths and needs are scanned.
var developmental = []extract.Instrument{extract.Cognitive, extract.SocialAdaptive}

var patternText = map[extract.Instrument]map[Pattern]string{
	extract.Cognitive: {
		PatternBelowAverage: "significant delays in cognitive-motor domains",
		PatternAboveAverage: "above-average cognitive-motor abilities",
		PatternMixed:        "mixed cognitive-motor profile with areas of both strength and need",
	},
	extract.SocialAdaptive: {
		PatternBelowAverage: "challenges in social-emotional and adaptive behavior development",
		PatternAboveAverage: "strengths in social-emotional functioning",
		PatternMixed:        "typical social-emotional development with some areas for growth",
	},
}

type Analyzer struct {
	log zerolog.Logger
}

func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "analysis").Logger()}
}

// Analyze never fails. Instruments without source text are left out;
// domains without a scaled score are reported but not interpreted.
func (a *Analyzer) Analyze(raws map[extract.Instrument]extract.InstrumentRaw) Analysis {
	out := Analysis{
		Instruments:  map[extract.Instrument]InstrumentAnalysis{},
		Order:        []extract.Instrument{},
		Strengths:    []string{},
		Needs:        []string{},
		ConcernHints: []string{},
	}

	for _, inst := range extract.Instruments {
		raw, ok := raws[inst]
		if !ok || !raw.Present() {
			continue
		}
		switch {
		case inst.Scored():
			ia := analyzeInstrument(raw)
			ia.Concerns = raw.Fragments.Concerns
			out.Instruments[inst] = ia
			out.Order = append(out.Order, inst)
			out.Observations = append(out.Observations, raw.Fragments.Observations...)
			out.ExtractedRecommendations = append(out.ExtractedRecommendations, raw.Fragments.Recommendations...)
			out.SafetyConcerns = append(out.SafetyConcerns, raw.Fragments.Safety...)
			out.SensoryImplications = append(out.SensoryImplications, raw.Fragments.Implications...)
			out.DocumentedStrengths = appendUnique(out.DocumentedStrengths, raw.Fragments.Strengths...)
			out.DocumentedNeeds = appendUnique(out.DocumentedNeeds, raw.Fragments.Needs...)
		case inst == extract.ClinicalNotes:
			out.NoteBullets = append(out.NoteBullets, raw.Fragments.Bullets...)
			out.Observations = append(out.Observations, raw.Fragments.Narratives...)
			out.Observations = append(out.Observations, raw.Fragments.Observations...)
		}
	}

	out.OverallPattern = overallPattern(out)
	out.Strengths, out.Needs, out.ConcernHints = strengthsAndNeeds(out)
	applyRules(&out)

	a.log.Debug().
		Int("instruments", len(out.Order)).
		Str("pattern", out.OverallPattern).
		Int("strengths", len(out.Strengths)).
		Int("needs", len(out.Needs)).
		Int("feeding_risks", len(out.FeedingRisks)).
		Msg("analysis complete")
	return out
}

func analyzeInstrument(raw extract.InstrumentRaw) InstrumentAnalysis {
	p, _ := extract.ProfileFor(raw.Instrument)
	ia := InstrumentAnalysis{
		Instrument: raw.Instrument,
		Method:     raw.Method,
		Domains:    []DomainResult{},
		Unparsed:   len(raw.Domains) == 0 && len(raw.Composites) == 0,
	}

	sum, n := 0, 0
	for _, domain := range raw.Order {
		score := raw.Domains[domain]
		dr := DomainResult{Domain: domain, Score: score, PrintedDescriptor: raw.Descriptors[domain]}
		switch {
		case score.ScaledScore != nil:
			interp := scoring.Classify(domain, *score.ScaledScore)
			dr.Interpretation = &interp
			sum += *score.ScaledScore
			n++
		case !p.ScaledScores && score.RawScore != nil:
			d := describe(raw.Instrument, domain, *score.RawScore)
			dr.Descriptor = &d
		}
		ia.Domains = append(ia.Domains, dr)
	}
	for _, name := range raw.OrderedComposites() {
		ia.Composites = append(ia.Composites, scoring.ClassifyComposite(name, raw.Composites[name]))
	}
	if n > 0 && p.ScaledScores {
		ia.AverageScaled = float64(sum) / float64(n)
		ia.Pattern = bucket(ia.AverageScaled)
	}
	return ia
}

func describe(inst extract.Instrument, domain string, score int) scoring.Descriptor {
	switch inst {
	case extract.Sensory:
		return scoring.SensoryQuadrant(domain, score)
	case extract.FeedingA:
		return scoring.FeedingConcern(domain, score)
	default:
		return scoring.FeedingSymptom(domain, score)
	}
}

func bucket(avg float64) Pattern {
	switch {
	case avg < belowAverageMean:
		return PatternBelowAverage
	case avg > aboveAverageMean:
		return PatternAboveAverage
	default:
		return PatternMixed
	}
}

func overallPattern(a Analysis) string {
	var parts []string
	for _, inst := range developmental {
		ia, ok := a.Instruments[inst]
		if !ok || ia.Pattern == PatternNone {
			continue
		}
		parts = append(parts, patternText[inst][ia.Pattern])
	}
	if len(parts) == 0 {
		return defaultPattern
	}
	return strings.Join(parts, "; ")
}

// strengthsAndNeeds keeps the first qualifying domains in encounter order;
// lists are truncated, not ranked.
func strengthsAndNeeds(a Analysis) (strengths, needs, concerns []string) {
	strengths, needs, concerns = []string{}, []string{}, []string{}
	for _, inst := range developmental {
		ia, ok := a.Instruments[inst]
		if !ok {
			continue
		}
		for _, interp := range ia.Interpretations() {
			s := interp.ScaledScore
			if s >= strengthFloor && len(strengths) < maxStrengths {
				strengths = append(strengths, interp.Domain)
			}
			if s < needCeiling && len(needs) < maxNeeds {
				needs = append(needs, interp.Domain)
			}
			if s < concernCeiling && len(concerns) < maxConcernHints {
				concerns = append(concerns, interp.Domain)
			}
		}
	}
	return strengths, needs, concerns
}

func applyRules(a *Analysis) {
	for _, r := range riskRules {
		ia, ok := a.Instruments[r.instrument]
		if !ok || !r.fires(ia) {
			continue
		}
		switch r.list {
		case listFeedingRisk:
			a.FeedingRisks = appendUnique(a.FeedingRisks, r.texts...)
		case listFeedingRecommendation:
			a.FeedingRecommendations = appendUnique(a.FeedingRecommendations, r.texts...)
		case listSafety:
			a.SafetyConcerns = appendUnique(a.SafetyConcerns, r.texts...)
		case listEndurance:
			a.EnduranceConcerns = appendUnique(a.EnduranceConcerns, r.texts...)
		case listSensory:
			a.SensoryImplications = appendUnique(a.SensoryImplications, r.texts...)
		}
	}
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		if !contains(list, it) {
			list = append(list, it)
		}
	}
	return list
}
