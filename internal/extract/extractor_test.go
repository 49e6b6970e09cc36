package extract

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	return NewExtractor(zerolog.New(zerolog.NewTestWriter(t)))
}

func TestExtractLabeledScores(t *testing.T) {
	raw := newTestExtractor(t).Extract(Cognitive, "Cognitive Raw Score: 12 Scaled Score: 9")

	require.Contains(t, raw.Domains, "Cognitive")
	got := raw.Domains["Cognitive"]
	require.NotNil(t, got.RawScore)
	require.NotNil(t, got.ScaledScore)
	assert.Equal(t, 12, *got.RawScore)
	assert.Equal(t, 9, *got.ScaledScore)
	assert.Nil(t, got.Percentile)
	assert.Equal(t, MethodPrimary, raw.Method)
	assert.Equal(t, []string{"Cognitive"}, raw.Order)
}

func TestExtractEmptyText(t *testing.T) {
	raw := newTestExtractor(t).Extract(Cognitive, "   \n ")
	assert.NotNil(t, raw.Domains)
	assert.Empty(t, raw.Domains)
	assert.Empty(t, raw.Composites)
	assert.Equal(t, MethodNone, raw.Method)
	assert.False(t, raw.Present())
}

func TestExtractStrategiesInOrder(t *testing.T) {
	text := `Bayley-4 Score Summary
Cognitive Raw Score: 40 Scaled Score: 11 Percentile: 63 Age Equivalent: 2:4
Fine Motor
  Raw Score: 30
  Scaled Score: 6
Receptive Communication: 8
Gross Motor 45 13 84 2:9
Expressive Communication 20 7
Cognitive Composite: 105
Language Composite Standard Score 88
Motor Composite 92 30 Average
`
	raw := newTestExtractor(t).Extract(Cognitive, text)

	assert.Equal(t, []string{"Cognitive", "Fine Motor", "Receptive Communication", "Gross Motor"}, raw.Order)

	cog := raw.Domains["Cognitive"]
	assert.Equal(t, 11, *cog.ScaledScore)
	assert.Equal(t, 63, *cog.Percentile)
	assert.Equal(t, "2:4", cog.AgeEquivalent)

	fm := raw.Domains["Fine Motor"]
	assert.Equal(t, 30, *fm.RawScore)
	assert.Equal(t, 6, *fm.ScaledScore)

	rc := raw.Domains["Receptive Communication"]
	assert.Nil(t, rc.RawScore)
	assert.Equal(t, 8, *rc.ScaledScore)

	gm := raw.Domains["Gross Motor"]
	assert.Equal(t, 45, *gm.RawScore)
	assert.Equal(t, 13, *gm.ScaledScore)
	assert.Equal(t, 84, *gm.Percentile)
	assert.Equal(t, "2:9", gm.AgeEquivalent)

	assert.Equal(t, map[string]int{"Cognitive Composite": 105, "Language Composite": 88, "Motor Composite": 92}, raw.Composites)
	assert.Equal(t, []string{"Cognitive Composite", "Language Composite", "Motor Composite"}, raw.OrderedComposites())
}

func TestExtractDoesNotConfuseSimilarDomainNames(t *testing.T) {
	text := "Social-Emotional Scaled Score: 5\nSocial Scaled Score: 12\n"
	raw := newTestExtractor(t).Extract(SocialAdaptive, text)
	assert.Equal(t, 5, *raw.Domains["Social-Emotional"].ScaledScore)
	assert.Equal(t, 12, *raw.Domains["Social"].ScaledScore)
}

func TestExtractLineScanFallback(t *testing.T) {
	text := "Score table\nfine-motor 30 6 9 1;10\nPlay Skills 12 10 50\nnot a row 1 2\n"
	raw := newTestExtractor(t).Extract(Cognitive, text)

	assert.Equal(t, MethodLineScan, raw.Method)
	assert.Equal(t, []string{"Fine Motor", "Play Skills"}, raw.Order)
	assert.Equal(t, "1;10", raw.Domains["Fine Motor"].AgeEquivalent)
	assert.Equal(t, 10, *raw.Domains["Play Skills"].ScaledScore)
}

func TestExtractDiscardsOverflowingNumbers(t *testing.T) {
	text := "Cognitive Raw Score: 99999999999999999999999 Scaled Score: 9"
	raw := newTestExtractor(t).Extract(Cognitive, text)
	got := raw.Domains["Cognitive"]
	assert.Nil(t, got.RawScore)
	assert.Equal(t, 9, *got.ScaledScore)
}

func TestExtractUnparsableText(t *testing.T) {
	raw := newTestExtractor(t).Extract(Sensory, "The caregiver did not complete the questionnaire.")
	assert.True(t, raw.Present())
	assert.Empty(t, raw.Domains)
	assert.Equal(t, MethodNone, raw.Method)
}

func TestExtractSensoryDescriptors(t *testing.T) {
	text := `Seeking Raw Score: 64 Much More Than Most
Avoiding: 38 Less Than Most
Sensitivity 52 Typical Performance
Implications: Difficulty tolerating grooming routines at home.`
	raw := newTestExtractor(t).Extract(Sensory, text)

	assert.Equal(t, 64, *raw.Domains["Seeking"].RawScore)
	assert.Equal(t, "Much More Than Most", raw.Descriptors["Seeking"])
	assert.Equal(t, 38, *raw.Domains["Avoiding"].RawScore)
	assert.Equal(t, "Less Than Most", raw.Descriptors["Avoiding"])
	assert.Equal(t, 52, *raw.Domains["Sensitivity"].RawScore)
	assert.NotContains(t, raw.Domains, "Registration")
	assert.Equal(t, []string{"Difficulty tolerating grooming routines at home."}, raw.Fragments.Implications)
}

func TestExtractFeedingInstruments(t *testing.T) {
	chomps := `Oral Motor Score: 5 Risk: Moderate
Pharyngeal Score: 7 Risk: High
Child coughed during thin liquid trials and aspiration risk was noted.`
	raw := newTestExtractor(t).Extract(FeedingA, chomps)
	assert.Equal(t, 5, *raw.Domains["Oral Motor"].RawScore)
	assert.Equal(t, "High", raw.Descriptors["Pharyngeal"])
	require.NotEmpty(t, raw.Fragments.Safety)
	assert.Contains(t, raw.Fragments.Safety[0], "aspiration risk")

	pedieat := "Physiology T-Score: 16 Elevated\nSelectivity: 9\n"
	raw = newTestExtractor(t).Extract(FeedingB, pedieat)
	assert.Equal(t, 16, *raw.Domains["Physiology"].RawScore)
	assert.Equal(t, "Elevated", raw.Descriptors["Physiology"])
	assert.Equal(t, 9, *raw.Domains["Selectivity"].RawScore)
}

func TestExtractClinicalNotes(t *testing.T) {
	text := "Session notes\n- overstuffed mouth\n• gagged several times\n* required moderate assistance\n"
	raw := newTestExtractor(t).Extract(ClinicalNotes, text)
	assert.Equal(t, []string{"overstuffed mouth", "gagged several times", "required moderate assistance"}, raw.Fragments.Bullets)
	assert.Equal(t, []string{
		"Child overstuffed their mouth.",
		"Child gagged in response to large bolus sizes.",
		"Child required moderate level of assistance.",
	}, raw.Fragments.Narratives)
	assert.Empty(t, raw.Domains)
}

func TestParseInstrument(t *testing.T) {
	inst, err := ParseInstrument(" Feeding_A ")
	require.NoError(t, err)
	assert.Equal(t, FeedingA, inst)
	_, err = ParseInstrument("bayley")
	assert.Error(t, err)
}

func TestExtractBlockStopsAtNextDomain(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		order    []string
		scaled   map[string]int
		notFound []string
	}{
		{
			name:     "heading without scores before labeled line",
			text:     "Cognitive\nFine Motor Raw Score: 20 Scaled Score: 5\n",
			order:    []string{"Fine Motor"},
			scaled:   map[string]int{"Fine Motor": 5},
			notFound: []string{"Cognitive"},
		},
		{
			name:     "heading without scores before another block",
			text:     "Cognitive:\nFine Motor\n  Raw Score: 30\n  Scaled Score: 6\n",
			order:    []string{"Fine Motor"},
			scaled:   map[string]int{"Fine Motor": 6},
			notFound: []string{"Cognitive"},
		},
		{
			name:     "heading without scores before a composite",
			text:     "Gross Motor\nMotor Composite: 92\n",
			order:    []string{},
			notFound: []string{"Gross Motor"},
		},
		{
			name:   "adjacent blocks both scored",
			text:   "Cognitive\n  Raw Score: 12\n  Scaled Score: 9\nFine Motor Raw Score: 20 Scaled Score: 5\n",
			order:  []string{"Cognitive", "Fine Motor"},
			scaled: map[string]int{"Cognitive": 9, "Fine Motor": 5},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := newTestExtractor(t).Extract(Cognitive, tc.text)
			assert.Equal(t, tc.order, raw.Order)
			for domain, want := range tc.scaled {
				require.Contains(t, raw.Domains, domain)
				require.NotNil(t, raw.Domains[domain].ScaledScore)
				assert.Equal(t, want, *raw.Domains[domain].ScaledScore)
			}
			for _, domain := range tc.notFound {
				assert.NotContains(t, raw.Domains, domain)
			}
		})
	}
}
