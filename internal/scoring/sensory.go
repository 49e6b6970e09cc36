package scoring

import "strings"

type Level string

const (
	LevelHigh     Level = "high"
	LevelModerate Level = "moderate"
	LevelMild     Level = "mild"
	LevelTypical  Level = "typical"
	LevelLow      Level = "low"
	LevelNone     Level = "none"
)

// Descriptor is a banded reading of a non-scaled instrument score.
type Descriptor struct {
	Domain         string `json:"domain"`
	Score          int    `json:"score"`
	Level          Level  `json:"level"`
	Classification string `json:"classification"`
	Description    string `json:"description"`
}

var sensoryText = map[string][3]string{
	"seeking": {
		"High sensory seeking behaviors; actively seeks intense sensory input, may appear restless or constantly moving",
		"Typical sensory seeking; appropriate interest in sensory experiences",
		"Low sensory seeking; limited interest in sensory exploration, may appear withdrawn from sensory experiences",
	},
	"avoiding": {
		"High sensory avoiding; actively avoids sensory input, may be overwhelmed by everyday sensations",
		"Typical sensory avoiding; appropriate behavioral responses to overwhelming sensory input",
		"Low sensory avoiding; tolerates most sensory experiences well",
	},
	"sensitivity": {
		"High sensory sensitivity; notices sensory input others miss, easily distracted by background stimuli",
		"Typical sensory sensitivity; notices sensory input at expected levels",
		"Low sensory sensitivity; may miss subtle sensory cues in environment",
	},
	"registration": {
		"High registration challenges; misses important sensory information, appears unaware of sensory input",
		"Typical sensory registration; notices relevant sensory information appropriately",
		"Good sensory registration; consistently notices and responds to sensory input",
	},
}

// SensoryQuadrant bands a Sensory Profile 2 quadrant raw score:
// above 60 high, above 40 typical, otherwise low.
func SensoryQuadrant(quadrant string, score int) Descriptor {
	idx, level, class := 2, LevelLow, "Less Than Others"
	switch {
	case score > 60:
		idx, level, class = 0, LevelHigh, "More Than Others"
	case score > 40:
		idx, level, class = 1, LevelTypical, "Just Like the Majority of Others"
	}
	text, ok := sensoryText[strings.ToLower(strings.TrimSpace(quadrant))]
	desc := "Quadrant score recorded; interpret alongside clinical observation"
	if ok {
		desc = text[idx]
	}
	return Descriptor{Domain: quadrant, Score: score, Level: level, Classification: class, Description: desc}
}

var sensoryDescriptorText = map[string]string{
	"much more than others":            "Much More Than Others: responses occur far more often than in same-age peers",
	"more than others":                 "More Than Others: responses occur more often than in same-age peers",
	"just like the majority of others": "Just Like the Majority of Others: responses are typical for age",
	"less than others":                 "Less Than Others: responses occur less often than in same-age peers",
	"much less than others":            "Much Less Than Others: responses occur far less often than in same-age peers",
}

// SensoryDescriptor normalises the printed SP2 classification wording.
// Forms printed with "Most" instead of "Others" are accepted.
func SensoryDescriptor(descriptor string) string {
	key := strings.ToLower(strings.Join(strings.Fields(descriptor), " "))
	key = strings.ReplaceAll(key, "than most", "than others")
	if key == "typical performance" {
		key = "just like the majority of others"
	}
	if text, ok := sensoryDescriptorText[key]; ok {
		return text
	}
	return strings.TrimSpace(descriptor)
}
