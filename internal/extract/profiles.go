package extract

import (
	"regexp"
	"sort"
)

type field int

const (
	fieldRaw field = iota
	fieldScaled
	fieldPercentile
)

type label struct {
	field field
	re    *regexp.Regexp
}

// Profile describes how one scored instrument lays out its domains.
type Profile struct {
	Instrument Instrument
	Title      string
	Tool       string
	Domains    []string
	Composites []string
	// ScaledScores is true for instruments reporting scaled (mean 10) scores.
	ScaledScores bool
	primary      field
	labels       []label
	descriptor   *regexp.Regexp
}

var (
	rawLabel        = label{fieldRaw, regexp.MustCompile(`(?i)\bRaw(?:\s+Score)?[:\s]*(\d+)`)}
	scaledLabel     = label{fieldScaled, regexp.MustCompile(`(?i)\bScaled(?:\s+Score)?[:\s]*(\d+)`)}
	percentileLabel = label{fieldPercentile, regexp.MustCompile(`(?i)\bPercentile(?:\s+Rank)?[:\s]*(\d+)`)}
	scoreLabel      = label{fieldRaw, regexp.MustCompile(`(?i)\b(?:Raw\s+|T-)?Score[:\s]*(\d+)`)}

	ageEquivalentRe = regexp.MustCompile(`(?i)\bAge\s+Equivalent[:\s]*(\d+\s*[:;]\s*\d+|\d+\s*years?(?:\s*,?\s*\d+\s*months?)?|\d+\s*months?)`)
)

var profiles = map[Instrument]Profile{
	Cognitive: {
		Instrument: Cognitive,
		Title:      "Bayley-4 Cognitive, Language, and Motor Scales",
		Tool:       "Bayley Scales of Infant and Toddler Development, Fourth Edition (Bayley-4): Cognitive, Language (receptive and expressive), and Motor (fine and gross) scales",
		Domains: []string{
			"Cognitive", "Visual Reception", "Fine Motor",
			"Receptive Communication", "Expressive Communication", "Gross Motor",
		},
		Composites:   []string{"Cognitive Composite", "Language Composite", "Motor Composite"},
		ScaledScores: true,
		primary:      fieldScaled,
		labels:       []label{rawLabel, scaledLabel, percentileLabel},
	},
	SocialAdaptive: {
		Instrument: SocialAdaptive,
		Title:      "Bayley-4 Social-Emotional and Adaptive Behavior Scales",
		Tool:       "Bayley-4 Social-Emotional and Adaptive Behavior Questionnaire completed with caregiver report",
		Domains: []string{
			"Social-Emotional", "Self-Control", "Compliance", "Communication",
			"Community Use", "Functional Pre-Academics", "Home Living",
			"Health and Safety", "Leisure", "Self-Care", "Self-Direction",
			"Social", "Motor",
		},
		Composites:   []string{"Social-Emotional Composite", "Adaptive Behavior Composite"},
		ScaledScores: true,
		primary:      fieldScaled,
		labels:       []label{rawLabel, scaledLabel, percentileLabel},
	},
	Sensory: {
		Instrument: Sensory,
		Title:      "Sensory Profile 2",
		Tool:       "Sensory Profile 2 (SP2) caregiver questionnaire",
		Domains:    []string{"Seeking", "Avoiding", "Sensitivity", "Registration"},
		primary:    fieldRaw,
		labels:     []label{scoreLabel, percentileLabel},
		descriptor: regexp.MustCompile(`(?i)(Much\s+(?:More|Less)\s+Than\s+(?:Most|Others)|More\s+Than\s+(?:Most|Others)|Less\s+Than\s+(?:Most|Others)|Typical\s+Performance|Just\s+Like\s+the\s+Majority\s+of\s+Others)`),
	},
	FeedingA: {
		Instrument: FeedingA,
		Title:      "Chicago Oral Motor and Pediatric Feeding Scale (ChOMPS)",
		Tool:       "Chicago Oral Motor and Pediatric Feeding Scale (ChOMPS)",
		Domains:    []string{"Oral Motor", "Oral Sensory", "Behavioral", "Pharyngeal", "Esophageal"},
		primary:    fieldRaw,
		labels:     []label{scoreLabel, percentileLabel},
		descriptor: regexp.MustCompile(`(?i)\bRisk[:\s]*(Low|Moderate|High)\b`),
	},
	FeedingB: {
		Instrument: FeedingB,
		Title:      "Pediatric Eating Assessment Tool (PediEAT)",
		Tool:       "Pediatric Eating Assessment Tool (PediEAT)",
		Domains:    []string{"Physiology", "Processing", "Mealtime Behavior", "Selectivity"},
		primary:    fieldRaw,
		labels:     []label{scoreLabel, percentileLabel},
		descriptor: regexp.MustCompile(`(?i)\b(Elevated|Typical|Atypical)\b`),
	},
}

// ProfileFor returns the domain layout of a scored instrument.
func ProfileFor(inst Instrument) (Profile, bool) {
	p, ok := profiles[inst]
	return p, ok
}

func sortStrings(s []string) { sort.Strings(s) }
