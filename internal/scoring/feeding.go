package scoring

import "strings"

// FeedingConcern bands a ChOMPS domain score.
func FeedingConcern(domain string, score int) Descriptor {
	d := Descriptor{Domain: domain, Score: score}
	switch {
	case score >= 7:
		d.Level, d.Classification = LevelHigh, "High concern"
		d.Description = "significant feeding difficulties requiring immediate intervention"
	case score >= 4:
		d.Level, d.Classification = LevelModerate, "Moderate concern"
		d.Description = "feeding challenges that warrant monitoring and intervention"
	case score >= 2:
		d.Level, d.Classification = LevelMild, "Mild concern"
		d.Description = "minor feeding difficulties that may benefit from strategies"
	default:
		d.Level, d.Classification = LevelNone, "No concern"
		d.Description = "typical feeding behaviors for age"
	}
	return d
}

var symptomText = map[string][3]string{
	"physiology": {
		"significant concerns with growth, medical complexity, or physical function during meals",
		"some concerns with physical aspects of eating and growth",
		"no significant concerns with physical eating processes",
	},
	"processing": {
		"significant sensory processing challenges affecting eating and mealtime participation",
		"some sensory processing differences impacting food acceptance",
		"appropriate sensory responses during eating",
	},
	"mealtime behavior": {
		"significant challenging behaviors during mealtimes affecting family dynamics",
		"some challenging mealtime behaviors requiring strategies",
		"appropriate social engagement and cooperation during meals",
	},
	"selectivity": {
		"severe food selectivity limiting nutritional intake and food variety",
		"some food preferences and limitations affecting meal planning",
		"age-appropriate food preferences and acceptance",
	},
}

// FeedingSymptom bands a PediEAT domain score: above 14 elevated, above 7
// moderate, otherwise typical.
func FeedingSymptom(domain string, score int) Descriptor {
	idx := 2
	d := Descriptor{Domain: domain, Score: score, Level: LevelTypical, Classification: "Typical"}
	switch {
	case score > 14:
		idx, d.Level, d.Classification = 0, LevelHigh, "Elevated symptoms"
	case score > 7:
		idx, d.Level, d.Classification = 1, LevelModerate, "Moderate symptoms"
	}
	if text, ok := symptomText[strings.ToLower(strings.TrimSpace(domain))]; ok {
		d.Description = text[idx]
	} else {
		d.Description = strings.ToLower(d.Classification) + " in " + domain
	}
	return d
}
