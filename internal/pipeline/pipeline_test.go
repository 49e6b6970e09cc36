package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/narrative"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/report"
	"github.com/joelkehle/otreport/internal/store"
)

const (
	facesheetText = `REGIONAL CENTER FACESHEET
Client Name: Ava Chen        UCI #: 7781234
DOB: 03/15/2022
Date of Evaluation: 06/20/2024
Parent/Guardian: Mei Chen
`
	cognitiveText = `Bayley-4 Cognitive Subtest
Cognitive Raw Score: 40 Scaled Score: 11
Fine Motor Raw Score: 20 Scaled Score: 5
`
	sensoryText = "The caregiver did not complete the questionnaire."
)

// markedGenerator answers with a marker for every section it could be asked
// about; markers for sections not in the request are ignored by the parser.
type markedGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *markedGenerator) Generate(ctx context.Context, _ string, _ int) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.err != nil {
		return "", g.err
	}
	var b strings.Builder
	keys := append([]narrative.SectionKey{}, narrative.CoreSections...)
	for _, inst := range extract.Instruments {
		keys = append(keys, narrative.InterpretationKey(inst))
	}
	for _, k := range keys {
		b.WriteString(k.Marker() + "\nGenerated text for " + string(k) + ".\n\n")
	}
	return b.String(), nil
}

func (g *markedGenerator) ModelName() string { return "test-model" }

type fakeArchive struct {
	sessions  []store.Session
	documents []report.Document
	err       error
}

func (f *fakeArchive) SaveRequest(_ context.Context, sess store.Session) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sessions = append(f.sessions, sess)
	return sess.ID, nil
}

func (f *fakeArchive) SaveDocument(_ context.Context, _ string, doc report.Document, _ any) (int, error) {
	f.documents = append(f.documents, doc)
	return len(f.documents), nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Generation.Enabled = true
	cfg.Generation.Timeout = time.Second
	cfg.Extraction.Concurrency = 2
	return cfg
}

func fixedClock() time.Time { return time.Date(2024, 6, 25, 9, 0, 0, 0, time.UTC) }

func newTestPipeline(t *testing.T, cfg config.Config, gen narrative.Generator, opts ...Option) *Pipeline {
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(cfg, gen, zerolog.New(zerolog.NewTestWriter(t)), opts...)
}

func fullRequest() Request {
	return Request{
		Patient: patient.Input{EncounterDate: "2024-06-20"},
		Texts: map[extract.Instrument]string{
			extract.Facesheet: facesheetText,
			extract.Cognitive: cognitiveText,
			extract.Sensory:   sensoryText,
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	gen := &markedGenerator{}
	p := newTestPipeline(t, testConfig(), gen)

	var stages []string
	res, err := p.RunWithProgress(context.Background(), fullRequest(), func(stage, _ string) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{StageExtract, StageAnalyze, StageNarrative, StageAssemble}, stages)
	assert.Equal(t, stages, res.Metadata.StagesExecuted)
	assert.NotEmpty(t, res.Metadata.SessionID)
	assert.Equal(t, "test-model", res.Metadata.Generator)
	assert.Equal(t, 0, res.Metadata.FallbackSections)
	assert.Equal(t, []string{"sensory"}, res.Metadata.UnparsedInstruments)
	assert.Equal(t, extract.MethodPrimary, res.Metadata.ExtractionMethods["cognitive"])
	assert.Equal(t, 1, gen.calls)

	// Facesheet fills the blanks; the caller's encounter date wins.
	assert.Equal(t, "Ava Chen", res.Record.Name)
	assert.Equal(t, "03/15/2022", res.Record.DateOfBirth)
	assert.Equal(t, "2024-06-20", res.Record.EncounterDate)
	assert.Equal(t, "06/25/2024", res.Record.ReportDate)

	require.NoError(t, report.Validate(res.Document))
	_, ok := res.Document.Find("cognitive_scores")
	assert.True(t, ok)
	_, ok = res.Document.Find("sensory_unparsed")
	assert.True(t, ok)
	_, ok = res.Document.Find("feeding_a_scores")
	assert.False(t, ok)

	summary, ok := res.Document.Find("summary")
	require.True(t, ok)
	assert.Equal(t, "Generated text for summary.", summary.Text)
}

func TestRunWithFailingGeneratorFallsBack(t *testing.T) {
	gen := &markedGenerator{err: errors.New("upstream unavailable")}
	res, err := newTestPipeline(t, testConfig(), gen).Run(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, len(res.Sections.Items), res.Metadata.FallbackSections)
	for _, src := range res.Metadata.SectionSources {
		assert.Equal(t, narrative.SourceFallback, src)
	}
	require.NoError(t, report.Validate(res.Document))
}

func TestRunWithoutGenerator(t *testing.T) {
	res, err := newTestPipeline(t, testConfig(), nil).Run(context.Background(), fullRequest())
	require.NoError(t, err)
	assert.Equal(t, "disabled", res.Metadata.Generator)
	assert.Equal(t, len(res.Sections.Items), res.Metadata.FallbackSections)
}

func TestRunRejectsBlankInput(t *testing.T) {
	req := Request{Texts: map[extract.Instrument]string{extract.Cognitive: "  \n", extract.Sensory: ""}}
	_, err := newTestPipeline(t, testConfig(), nil).Run(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoInstrumentData)
	assert.Equal(t, StageExtract, StageNameFromError(err))
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(t, testConfig(), &markedGenerator{}).Run(ctx, fullRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageExtract, StageNameFromError(err))
}

func TestRunArchivesRequestAndDocument(t *testing.T) {
	arch := &fakeArchive{}
	req := fullRequest()
	req.SessionID = "4b1f2c1e-8f0a-4e43-9c55-2f1d0a7e9b10"

	res, err := newTestPipeline(t, testConfig(), nil, WithArchive(arch)).Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, arch.sessions, 1)
	assert.Equal(t, req.SessionID, arch.sessions[0].ID)
	assert.Equal(t, req.Texts, arch.sessions[0].Texts)
	require.Len(t, arch.documents, 1)
	assert.Equal(t, res.Document, arch.documents[0])
	assert.Equal(t, 1, res.Metadata.Revision)
}

func TestRunArchiveFailure(t *testing.T) {
	arch := &fakeArchive{err: errors.New("disk full")}
	_, err := newTestPipeline(t, testConfig(), nil, WithArchive(arch)).Run(context.Background(), fullRequest())
	require.Error(t, err)
	assert.Equal(t, StageArchive, StageNameFromError(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunIsDeterministicWithoutGenerator(t *testing.T) {
	p := newTestPipeline(t, testConfig(), nil)
	req := fullRequest()
	req.SessionID = "fixed"

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Document, second.Document)
}

func TestStageNameFromError(t *testing.T) {
	assert.Equal(t, "pipeline", StageNameFromError(errors.New("plain")))
	wrapped := &StageError{Stage: StageAssemble, Err: errors.New("bad block")}
	assert.Equal(t, StageAssemble, StageNameFromError(wrapped))
	assert.Equal(t, "assemble: bad block", wrapped.Error())
}
