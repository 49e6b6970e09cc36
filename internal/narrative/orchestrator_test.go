package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/patient"
)

type queueGenerator struct {
	responses []string
	err       error
	prompts   []string
	maxTokens []int
}

func (q *queueGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	q.prompts = append(q.prompts, prompt)
	q.maxTokens = append(q.maxTokens, maxTokens)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if q.err != nil {
		return "", q.err
	}
	if len(q.responses) == 0 {
		return "", nil
	}
	out := q.responses[0]
	q.responses = q.responses[1:]
	return out, nil
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ string, _ int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

const fixtureCognitive = `Bayley-4 Cognitive Subtest
Cognitive Raw Score: 12 Scaled Score: 9
Fine Motor Raw Score: 20 Scaled Score: 5
`

func fixture(t *testing.T, name string) (patient.Record, analysis.Analysis) {
	t.Helper()
	raw := extract.NewExtractor(zerolog.Nop()).Extract(extract.Cognitive, fixtureCognitive)
	an := analysis.NewAnalyzer(zerolog.Nop()).Analyze(map[extract.Instrument]extract.InstrumentRaw{extract.Cognitive: raw})
	require.True(t, an.Has(extract.Cognitive))
	rec := patient.NewRecord(patient.Input{
		Name:          name,
		DateOfBirth:   "2022-03-15",
		EncounterDate: "2024-06-15",
		Guardian:      "Mei Chen",
	}, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC))
	return rec, an
}

func testConfig() config.GenerationConfig {
	cfg := config.Default().Generation
	cfg.Enabled = true
	cfg.Timeout = time.Second
	return cfg
}

func newTestOrchestrator(t *testing.T, gen Generator, cfg config.GenerationConfig) *Orchestrator {
	return NewOrchestrator(gen, cfg, zerolog.New(zerolog.NewTestWriter(t)))
}

func completeOutput(keys []SectionKey) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k.Marker())
		b.WriteString("\nGenerated text for ")
		b.WriteString(string(k))
		b.WriteString(".\n\n")
	}
	return b.String()
}

func TestGenerateAllSectionsParsed(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	keys := RequiredKeys(an)
	gen := &queueGenerator{responses: []string{completeOutput(keys)}}

	got := newTestOrchestrator(t, gen, testConfig()).Generate(context.Background(), rec, an)

	require.Len(t, gen.prompts, 1)
	assert.Equal(t, testConfig().MaxTokens, gen.maxTokens[0])
	require.Len(t, got.Items, len(keys))
	for i, sec := range got.Items {
		assert.Equal(t, keys[i], sec.Key)
		assert.Equal(t, SourceGenerated, sec.Source)
		assert.Equal(t, "Generated text for "+string(sec.Key)+".", sec.Text)
		assert.Equal(t, []State{StatePromptBuilt, StateGenerationRequested, StateParseOK, StateResolved}, sec.Trace)
	}
	assert.Zero(t, got.FallbackCount())
	assert.Contains(t, gen.prompts[0], "[INTERPRETATION_COGNITIVE]")
	assert.Contains(t, gen.prompts[0], "Ava Chen")
}

func TestGenerateMissingSummaryFallsBackAlone(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	var kept []SectionKey
	for _, k := range RequiredKeys(an) {
		if k != Summary {
			kept = append(kept, k)
		}
	}
	gen := &queueGenerator{responses: []string{completeOutput(kept)}}

	got := newTestOrchestrator(t, gen, testConfig()).Generate(context.Background(), rec, an)

	summary, ok := got.Get(Summary)
	require.True(t, ok)
	assert.Equal(t, SourceFallback, summary.Source)
	assert.Contains(t, summary.Text, "Ava Chen")
	assert.Equal(t, []State{StatePromptBuilt, StateGenerationRequested, StateParseFailed, StateResolved}, summary.Trace)
	assert.Equal(t, 1, got.FallbackCount())
	assert.Equal(t, SourceGenerated, got.Sources()[string(Goals)])
}

func TestGenerateFailingGeneratorUsesFallbackEverywhere(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	gen := &queueGenerator{err: errors.New("status code: 503 overloaded")}

	got := newTestOrchestrator(t, gen, testConfig()).Generate(context.Background(), rec, an)

	require.Len(t, got.Items, len(RequiredKeys(an)))
	for _, sec := range got.Items {
		assert.Equal(t, SourceFallback, sec.Source, sec.Key)
		assert.NotEmpty(t, strings.TrimSpace(sec.Text), sec.Key)
		assert.Contains(t, sec.Text, "Ava Chen", sec.Key)
		assert.Contains(t, sec.Reason, "503")
		assert.Equal(t, []State{StatePromptBuilt, StateGenerationRequested, StateGenerationFailed, StateResolved}, sec.Trace)
	}
}

func TestGenerateFallbackKeepsNonASCIIName(t *testing.T) {
	for _, name := range []string{"Émile Durand", "Ángel Ruiz", "Óscar Núñez", "émile durand"} {
		t.Run(name, func(t *testing.T) {
			rec, an := fixture(t, name)
			gen := &queueGenerator{err: errors.New("connection refused")}

			got := newTestOrchestrator(t, gen, testConfig()).Generate(context.Background(), rec, an)

			want := capitalize(name)
			for _, sec := range got.Items {
				assert.True(t, utf8.ValidString(sec.Text), sec.Key)
				assert.NotContains(t, sec.Text, "\uFFFD", sec.Key)
				if !strings.Contains(sec.Text, name) {
					assert.Contains(t, sec.Text, want, sec.Key)
				}
			}
			obs, ok := got.Get(Observations)
			require.True(t, ok)
			assert.True(t, strings.HasPrefix(obs.Text, want+" participated"), obs.Text)
		})
	}
}

func TestCapitalizeFirstRune(t *testing.T) {
	assert.Equal(t, "Émile", capitalize("émile"))
	assert.Equal(t, "émile", lowerFirst("Émile"))
	assert.Equal(t, "Ava", capitalize("ava"))
	assert.Equal(t, "", capitalize(""))
}

func TestGenerateDisabledSkipsRequest(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	gen := &queueGenerator{}
	cfg := testConfig()
	cfg.Enabled = false

	got := newTestOrchestrator(t, gen, cfg).Generate(context.Background(), rec, an)

	assert.Empty(t, gen.prompts)
	assert.Equal(t, len(got.Items), got.FallbackCount())
	sec, _ := got.Get(Background)
	assert.Equal(t, []State{StatePromptBuilt, StateGenerationFailed, StateResolved}, sec.Trace)
}

func TestGenerateNilGenerator(t *testing.T) {
	rec, an := fixture(t, "")
	got := newTestOrchestrator(t, nil, testConfig()).Generate(context.Background(), rec, an)

	assert.Equal(t, len(got.Items), got.FallbackCount())
	assert.True(t, strings.HasPrefix(got.Text(Observations), "The child "))
	assert.Contains(t, got.Text(Goals), "Within six months, the child will")
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond

	start := time.Now()
	got := newTestOrchestrator(t, blockingGenerator{}, cfg).Generate(context.Background(), rec, an)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, len(got.Items), got.FallbackCount())
	sec, _ := got.Get(Summary)
	assert.Contains(t, sec.Reason, context.DeadlineExceeded.Error())
}

func TestGenerateCanceledContextFallsBack(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	gen := &queueGenerator{responses: []string{completeOutput(RequiredKeys(an))}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newTestOrchestrator(t, gen, testConfig()).Generate(ctx, rec, an)

	assert.Empty(t, gen.prompts)
	assert.Equal(t, len(got.Items), got.FallbackCount())
}

func TestGenerateIsTotalWithoutInstruments(t *testing.T) {
	rec := patient.NewRecord(patient.Input{Name: "Leo"}, time.Now())
	an := analysis.NewAnalyzer(zerolog.Nop()).Analyze(nil)

	got := newTestOrchestrator(t, nil, testConfig()).Generate(context.Background(), rec, an)

	require.Len(t, got.Items, len(CoreSections))
	assert.Contains(t, got.Text(Summary), "unknown age")
	for _, sec := range got.Items {
		assert.Contains(t, sec.Text, "Leo", sec.Key)
	}
}

func TestFragmentsPerScoredInstrument(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	cfg := testConfig()
	cfg.DetailFragments = true
	gen := &queueGenerator{responses: []string{`{"impact": {"type": "paragraph", "content": "Fine motor delays limit play."}}`}}

	got := newTestOrchestrator(t, gen, cfg).Fragments(context.Background(), rec, an)

	require.Len(t, got, 1)
	assert.Equal(t, extract.Cognitive, got[0].Instrument)
	assert.Equal(t, FragmentParsed, got[0].Path)
	assert.Equal(t, cfg.FragmentMaxTokens, gen.maxTokens[0])
	assert.Contains(t, gen.prompts[0], "Fine Motor")
}

func TestFragmentsSkippedOnFailureOrWhenOff(t *testing.T) {
	rec, an := fixture(t, "Ava Chen")
	cfg := testConfig()
	cfg.DetailFragments = true

	failing := &queueGenerator{err: errors.New("status code: 429 rate limited")}
	assert.Empty(t, newTestOrchestrator(t, failing, cfg).Fragments(context.Background(), rec, an))
	assert.Len(t, failing.prompts, 1)

	cfg.DetailFragments = false
	idle := &queueGenerator{}
	assert.Empty(t, newTestOrchestrator(t, idle, cfg).Fragments(context.Background(), rec, an))
	assert.Empty(t, idle.prompts)
}
