// Package pipeline runs one evaluation request through extraction, analysis,
// narrative generation and report assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/narrative"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/report"
	"github.com/joelkehle/otreport/internal/store"
)

const (
	StageExtract   = "extract"
	StageAnalyze   = "analyze"
	StageNarrative = "narrative"
	StageAssemble  = "assemble"
	StageArchive   = "archive"
)

const tracerName = "github.com/joelkehle/otreport/internal/pipeline"

var ErrNoInstrumentData = errors.New("no instrument text supplied")

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageNameFromError returns the failing stage, or "pipeline" for errors
// raised outside a stage.
func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

type StageProgressFn func(stage, message string)

// Archive persists requests and their documents.
type Archive interface {
	SaveRequest(ctx context.Context, sess store.Session) (string, error)
	SaveDocument(ctx context.Context, sessionID string, doc report.Document, metadata any) (int, error)
}

type Pipeline struct {
	cfg       config.Config
	gen       narrative.Generator
	extractor *extract.Extractor
	analyzer  *analysis.Analyzer
	narrator  *narrative.Orchestrator
	assembler *report.Assembler
	archive   Archive
	tracer    trace.Tracer
	log       zerolog.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

// WithArchive stores every request and resulting document.
func WithArchive(a Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithClock overrides the clock used for report dates and timings.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New wires the stages. gen may be nil, in which case every narrative
// section uses its fallback text.
func New(cfg config.Config, gen narrative.Generator, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		gen:       gen,
		extractor: extract.NewExtractor(log),
		analyzer:  analysis.NewAnalyzer(log),
		narrator:  narrative.NewOrchestrator(gen, cfg.Generation, log),
		assembler: report.NewAssembler(cfg.Report),
		tracer:    otel.Tracer(tracerName),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	return p.runWithProgress(ctx, req, nil)
}

func (p *Pipeline) RunWithProgress(ctx context.Context, req Request, progress StageProgressFn) (Result, error) {
	return p.runWithProgress(ctx, req, progress)
}

func (p *Pipeline) runWithProgress(ctx context.Context, req Request, progress StageProgressFn) (Result, error) {
	started := p.now()
	if req.SessionID == "" {
		req.SessionID = store.NewSessionID()
	}
	res := Result{
		Request: req,
		Metadata: Metadata{
			SessionID:    req.SessionID,
			StartedAt:    started,
			StageTimings: map[string]int64{},
			Generator:    generatorName(p.gen, p.cfg.Generation),
		},
	}
	if !hasText(req.Texts) {
		return res, &StageError{Stage: StageExtract, Err: ErrNoInstrumentData}
	}

	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = &p.log
	}
	scoped := log.With().Str("session_id", req.SessionID).Logger()
	ctx = scoped.WithContext(ctx)

	ctx, runSpan := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("session_id", req.SessionID)))
	defer runSpan.End()

	if p.archive != nil {
		if _, err := p.archive.SaveRequest(ctx, store.Session{ID: req.SessionID, Patient: req.Patient, Texts: req.Texts, CreatedAt: started}); err != nil {
			return res, p.fail(runSpan, StageArchive, err)
		}
	}

	emit(progress, StageExtract, "Extracting scores from submitted documents...")
	raws, err := stage(ctx, p, &res, StageExtract, func(ctx context.Context) (map[extract.Instrument]extract.InstrumentRaw, error) {
		return p.extractAll(ctx, req.Texts)
	})
	if err != nil {
		return res, p.fail(runSpan, StageExtract, err)
	}
	res.Raw = raws
	res.Metadata.ExtractionMethods = map[string]extract.Method{}
	for inst, raw := range raws {
		res.Metadata.ExtractionMethods[string(inst)] = raw.Method
	}

	merged := req.Patient
	if fs, ok := raws[extract.Facesheet]; ok {
		merged = merged.Merge(fs.Demographics)
	}
	res.Record = patient.NewRecord(merged, started)

	emit(progress, StageAnalyze, "Classifying scores...")
	res.Analysis, _ = stage(ctx, p, &res, StageAnalyze, func(context.Context) (analysis.Analysis, error) {
		return p.analyzer.Analyze(raws), nil
	})
	for _, inst := range res.Analysis.Order {
		if res.Analysis.Instruments[inst].Unparsed {
			res.Metadata.UnparsedInstruments = append(res.Metadata.UnparsedInstruments, string(inst))
		}
	}

	emit(progress, StageNarrative, "Writing narrative sections...")
	_, _ = stage(ctx, p, &res, StageNarrative, func(ctx context.Context) (struct{}, error) {
		res.Sections = p.narrator.Generate(ctx, res.Record, res.Analysis)
		res.Fragments = p.narrator.Fragments(ctx, res.Record, res.Analysis)
		return struct{}{}, nil
	})
	res.Metadata.SectionSources = res.Sections.Sources()
	res.Metadata.FallbackSections = res.Sections.FallbackCount()
	if len(res.Fragments) > 0 {
		res.Metadata.FragmentPaths = map[string]narrative.FragmentPath{}
		for _, f := range res.Fragments {
			res.Metadata.FragmentPaths[string(f.Instrument)] = f.Path
		}
	}

	emit(progress, StageAssemble, "Assembling report...")
	res.Document, err = stage(ctx, p, &res, StageAssemble, func(context.Context) (report.Document, error) {
		return p.assembler.Assemble(res.Record, res.Analysis, res.Sections, res.Fragments)
	})
	if err != nil {
		return res, p.fail(runSpan, StageAssemble, err)
	}
	res.Metadata.CompletedAt = p.now()

	if p.archive != nil {
		rev, err := p.archive.SaveDocument(ctx, req.SessionID, res.Document, res.Metadata)
		if err != nil {
			return res, p.fail(runSpan, StageArchive, err)
		}
		res.Metadata.Revision = rev
	}

	scoped.Info().
		Int("instruments", len(res.Analysis.Order)).
		Int("fallback_sections", res.Metadata.FallbackSections).
		Int("blocks", len(res.Document.Blocks)).
		Dur("elapsed", res.Metadata.CompletedAt.Sub(started)).
		Msg("report generated")
	return res, nil
}

// stage runs fn inside a span and records its wall time.
func stage[T any](ctx context.Context, p *Pipeline, res *Result, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()
	start := p.now()
	out, err := fn(ctx)
	res.Metadata.StageTimings[name] = p.now().Sub(start).Milliseconds()
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (p *Pipeline) fail(span trace.Span, stageName string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stageName)
	return &StageError{Stage: stageName, Err: err}
}

// extractAll runs one extraction per supplied instrument. Each goroutine
// writes only its own slot.
func (p *Pipeline) extractAll(ctx context.Context, texts map[extract.Instrument]string) (map[extract.Instrument]extract.InstrumentRaw, error) {
	insts := make([]extract.Instrument, 0, len(texts))
	for _, inst := range extract.Instruments {
		if _, ok := texts[inst]; ok {
			insts = append(insts, inst)
		}
	}
	slots := make([]extract.InstrumentRaw, len(insts))

	g, gctx := errgroup.WithContext(ctx)
	if n := p.cfg.Extraction.Concurrency; n > 0 {
		g.SetLimit(n)
	}
	for i, inst := range insts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = p.extractor.Extract(inst, texts[inst])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[extract.Instrument]extract.InstrumentRaw, len(insts))
	for i, inst := range insts {
		out[inst] = slots[i]
	}
	return out, nil
}

func hasText(texts map[extract.Instrument]string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

func generatorName(gen narrative.Generator, cfg config.GenerationConfig) string {
	if gen == nil || !cfg.Enabled {
		return "disabled"
	}
	if named, ok := gen.(interface{ ModelName() string }); ok {
		return named.ModelName()
	}
	return "custom"
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
