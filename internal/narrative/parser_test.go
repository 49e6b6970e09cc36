package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func parse(output string, keys ...SectionKey) (map[SectionKey]string, []string) {
	expected := keySet(keys)
	return parseSections(tokenize(output, expected), expected)
}

func TestParseSectionsMarkerForms(t *testing.T) {
	out := "Here is the report.\n" +
		"[BACKGROUND]\nReferred by the Regional Center.\n\n" +
		"**[SUMMARY]**\nAva shows mixed results.\nSecond line.\n" +
		"## [Goals]: 1. Within six months, Ava will stack blocks.\n"

	got, unknown := parse(out, Background, Summary, Goals)

	assert.Empty(t, unknown)
	assert.Equal(t, "Referred by the Regional Center.", got[Background])
	assert.Equal(t, "Ava shows mixed results.\nSecond line.", got[Summary])
	assert.Equal(t, "1. Within six months, Ava will stack blocks.", got[Goals])
}

func TestParseSectionsUnknownAndDuplicateMarkers(t *testing.T) {
	out := "[SUMMARY]\nfirst\n[NOTES]\nstray text\n[SUMMARY]\nsecond\n[GOALS]\n\n"

	got, unknown := parse(out, Summary, Goals)

	assert.Equal(t, []string{"notes"}, unknown)
	assert.Equal(t, "first", got[Summary])
	_, ok := got[Goals]
	assert.False(t, ok, "empty section must be reported missing")
}

func TestTokenizeKeepsBracketedProse(t *testing.T) {
	out := "[OBSERVATIONS]\n[Name] will need cues during transitions.\n"

	got, _ := parse(out, Observations)

	assert.Equal(t, "[Name] will need cues during transitions.", got[Observations])
}

func TestInterpretationMarkerNormalised(t *testing.T) {
	got, _ := parse("[Interpretation Cognitive]\nScores were average.", InterpretationKey("cognitive"))
	assert.Equal(t, "Scores were average.", got[InterpretationKey("cognitive")])
}

func TestSplitList(t *testing.T) {
	text := "- Occupational therapy 2x/week\n" +
		"  to build fine motor skills\n" +
		"2) Speech therapy evaluation\n" +
		"• Physical therapy evaluation\n\n" +
		"Re-evaluation in six months"

	assert.Equal(t, []string{
		"Occupational therapy 2x/week to build fine motor skills",
		"Speech therapy evaluation",
		"Physical therapy evaluation",
		"Re-evaluation in six months",
	}, SplitList(text))
	assert.Empty(t, SplitList("  \n "))
}
