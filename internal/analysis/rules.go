package analysis

import "github.com/joelkehle/otreport/internal/extract"

type ruleList int

const (
	listFeedingRisk ruleList = iota
	listFeedingRecommendation
	listSafety
	listEndurance
	listSensory
)

// riskRule fires when any listed domain (any domain of the instrument when
// the list is empty) scores at or above min.
type riskRule struct {
	instrument extract.Instrument
	domains    []string
	min        int
	list       ruleList
	texts      []string
}

// riskRules is the single table of score thresholds for feeding and sensory
// findings. PediEAT "greater than" thresholds are written as inclusive
// integer minimums.
var riskRules = []riskRule{
	{extract.FeedingA, []string{"Oral Motor"}, 4, listFeedingRisk, []string{"Bolus control: Difficulty managing food bolus, risk of pocketing or spillage"}},
	{extract.FeedingA, []string{"Oral Sensory"}, 4, listFeedingRisk, []string{"Gagging: Heightened gag response to textures, limiting food variety and intake"}},
	{extract.FeedingA, []string{"Behavioral"}, 4, listFeedingRisk, []string{"Food hoarding: Behavioral feeding patterns including food refusal or hoarding behaviors"}},
	{extract.FeedingA, []string{"Pharyngeal"}, 4, listFeedingRisk, []string{"Swallowing safety: Potential aspiration risk requiring modified textures and positioning"}},
	{extract.FeedingA, nil, 4, listFeedingRecommendation, []string{
		"Feeding therapy with licensed speech-language pathologist",
		"Modified food textures and positioning strategies",
		"Caregiver education on safe feeding practices",
	}},
	{extract.FeedingA, []string{"Pharyngeal"}, 6, listFeedingRecommendation, []string{"Video fluoroscopic swallow study (VFSS) evaluation"}},

	{extract.FeedingB, []string{"Physiology"}, 13, listSafety, []string{
		"Nutritional safety: Risk of inadequate caloric or nutrient intake",
		"Growth concerns: May require nutritional monitoring and intervention",
	}},
	{extract.FeedingB, []string{"Mealtime Behavior"}, 13, listSafety, []string{"Mealtime safety: Behavioral challenges may impact safe food consumption"}},
	{extract.FeedingB, []string{"Physiology"}, 11, listEndurance, []string{
		"Feeding endurance: May fatigue quickly during meals, requiring shorter feeding sessions",
		"Energy conservation: Strategies needed to optimize energy during eating",
	}},

	{extract.Sensory, []string{"Avoiding", "Sensitivity"}, 61, listSensory, []string{"Grooming: May resist hairbrushing, teeth brushing, or face washing due to sensory defensiveness"}},
	{extract.Sensory, []string{"Registration"}, 61, listSensory, []string{"Grooming: May not notice when face or hands are dirty, requiring extra prompting for hygiene"}},
	{extract.Sensory, []string{"Seeking"}, 61, listSensory, []string{"Play: Seeks intense physical play, may play roughly with toys and peers"}},
	{extract.Sensory, []string{"Avoiding"}, 61, listSensory, []string{"Play: May avoid messy play activities, prefers predictable sensory experiences"}},
	{extract.Sensory, []string{"Sensitivity"}, 61, listSensory, []string{"Feeding: May be highly selective about food textures, temperatures, or tastes"}},
	{extract.Sensory, []string{"Registration"}, 61, listSensory, []string{"Feeding: May not notice food around mouth, poor awareness of hunger/fullness cues"}},
}

func (r riskRule) fires(ia InstrumentAnalysis) bool {
	for _, d := range ia.Domains {
		if len(r.domains) > 0 && !contains(r.domains, d.Domain) {
			continue
		}
		if v, ok := d.Score.Value(); ok && v >= r.min {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
