// Package scoring maps instrument scores onto fixed clinical norm bands.
// Every function here is total: any integer input yields a defined result.
package scoring

import (
	"strconv"
	"strings"
)

type Classification string

const (
	AboveAverage Classification = "Above Average"
	Average      Classification = "Average"
	BelowAverage Classification = "Below Average"
	ExtremelyLow Classification = "Extremely Low"
)

type DomainInterpretation struct {
	Domain                string         `json:"domain"`
	ScaledScore           int            `json:"scaled_score"`
	Classification        Classification `json:"classification"`
	PercentileBand        string         `json:"percentile_band"`
	ClinicalDescription   string         `json:"clinical_description"`
	FunctionalImplication string         `json:"functional_implication"`
}

type band struct {
	min            int
	classification Classification
	percentile     string
	description    string
}

// scaledBands is ordered from highest floor to lowest; the last entry
// catches everything below the previous floor.
var scaledBands = []band{
	{min: 13, classification: AboveAverage, percentile: "84th percentile and above", description: "significantly above expected developmental level"},
	{min: 8, classification: Average, percentile: "25th–75th percentile", description: "within expected developmental range"},
	{min: 4, classification: BelowAverage, percentile: "9th–24th percentile", description: "below expected developmental level"},
	{classification: ExtremelyLow, percentile: "2nd percentile and below", description: "significantly below expected developmental level"},
}

func scaledBand(score int) band {
	for _, b := range scaledBands[:len(scaledBands)-1] {
		if score >= b.min {
			return b
		}
	}
	return scaledBands[len(scaledBands)-1]
}

// Classify interprets a scaled score (mean 10, SD 3) for one domain.
func Classify(domain string, scaled int) DomainInterpretation {
	b := scaledBand(scaled)
	return DomainInterpretation{
		Domain:                domain,
		ScaledScore:           scaled,
		Classification:        b.classification,
		PercentileBand:        b.percentile,
		ClinicalDescription:   b.description,
		FunctionalImplication: FunctionalImplication(domain, b.classification),
	}
}

type CompositeClass string

const (
	VerySuperior       CompositeClass = "Very Superior"
	Superior           CompositeClass = "Superior"
	HighAverage        CompositeClass = "High Average"
	CompositeAverage   CompositeClass = "Average"
	LowAverage         CompositeClass = "Low Average"
	CompositeBelow     CompositeClass = "Below Average"
	CompositeExtremely CompositeClass = "Extremely Low"
)

type CompositeInterpretation struct {
	Name                 string         `json:"name"`
	Score                int            `json:"score"`
	Classification       CompositeClass `json:"classification"`
	RangeDescription     string         `json:"range_description"`
	Percentile           int            `json:"percentile"`
	ClinicalSignificance string         `json:"clinical_significance"`
}

var compositeBands = []struct {
	min   int
	class CompositeClass
	rng   string
}{
	{130, VerySuperior, "130 and above"},
	{120, Superior, "120–129"},
	{110, HighAverage, "110–119"},
	{90, CompositeAverage, "90–109"},
	{80, LowAverage, "80–89"},
	{70, CompositeBelow, "70–79"},
}

var compositePercentiles = []struct{ min, pct int }{
	{130, 98}, {120, 91}, {110, 75}, {100, 50}, {90, 25}, {80, 9}, {70, 2},
}

// ClassifyComposite interprets a standard score (mean 100, SD 15).
func ClassifyComposite(name string, score int) CompositeInterpretation {
	out := CompositeInterpretation{
		Name:                 name,
		Score:                score,
		Classification:       CompositeExtremely,
		RangeDescription:     "69 and below",
		Percentile:           CompositePercentile(score),
		ClinicalSignificance: compositeSignificance(score),
	}
	for _, b := range compositeBands {
		if score >= b.min {
			out.Classification = b.class
			out.RangeDescription = b.rng
			break
		}
	}
	return out
}

// CompositePercentile is a step approximation, not a norm-table lookup.
func CompositePercentile(score int) int {
	for _, p := range compositePercentiles {
		if score >= p.min {
			return p.pct
		}
	}
	return 1
}

func compositeSignificance(score int) string {
	switch {
	case score < 70:
		return "Significant delay; intervention strongly indicated"
	case score < 85:
		return "Mild delay; intervention recommended"
	case score >= 90:
		return "Within normal limits"
	default:
		return "Borderline; monitor and consider support"
	}
}

// IsComposite reports whether a label names a composite rather than a subtest.
func IsComposite(label string) bool {
	return strings.Contains(strings.ToLower(label), "composite")
}

// Ordinal formats a percentile rank as "1st", "22nd", "13th".
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
