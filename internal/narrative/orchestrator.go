package narrative

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/patient"
)

// Orchestrator resolves every required report section, preferring generated
// text and falling back to deterministic templates per section.
type Orchestrator struct {
	gen       Generator
	cfg       config.GenerationConfig
	log       zerolog.Logger
	fragments *FragmentExecutor
}

// NewOrchestrator accepts a nil Generator; every section then falls back.
func NewOrchestrator(gen Generator, cfg config.GenerationConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		gen:       gen,
		cfg:       cfg,
		log:       log,
		fragments: NewFragmentExecutor(gen, cfg.FragmentMaxTokens, log),
	}
}

func (o *Orchestrator) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &o.log
}

func (o *Orchestrator) enabled() bool {
	return o.cfg.Enabled && o.gen != nil
}

// Generate never fails: a section that cannot be generated is filled from
// its fallback template and marked as such.
func (o *Orchestrator) Generate(ctx context.Context, rec patient.Record, an analysis.Analysis) Sections {
	log := o.logger(ctx)
	keys := RequiredKeys(an)
	expected := keySet(keys)
	prompt := buildPrompt(rec, an, keys)

	traces := make(map[SectionKey][]State, len(keys))
	for _, k := range keys {
		traces[k] = []State{StatePromptBuilt}
	}

	var parsed map[SectionKey]string
	genErr := ErrGenerationDisabled
	if o.enabled() {
		for _, k := range keys {
			traces[k] = append(traces[k], StateGenerationRequested)
		}
		var output string
		output, genErr = o.request(ctx, prompt)
		if genErr == nil {
			var unknown []string
			parsed, unknown = parseSections(tokenize(output, expected), expected)
			if len(unknown) > 0 {
				log.Debug().Strs("markers", unknown).Msg("narrative ignored unknown markers")
			}
		}
	}
	if genErr != nil && !errors.Is(genErr, ErrGenerationDisabled) {
		log.Warn().
			Err(genErr).
			Str("failure_class", string(classifyTransportError(genErr))).
			Int("sections", len(keys)).
			Msg("narrative generation failed; using fallback text")
	}

	out := Sections{Items: make([]Section, 0, len(keys))}
	for _, k := range keys {
		sec := Section{Key: k}
		text, ok := parsed[k]
		switch {
		case genErr != nil:
			sec.Text, sec.Source, sec.Reason = fallbackText(k, rec, an), SourceFallback, genErr.Error()
			traces[k] = append(traces[k], StateGenerationFailed)
		case ok:
			sec.Text, sec.Source = text, SourceGenerated
			traces[k] = append(traces[k], StateParseOK)
		default:
			sec.Text, sec.Source, sec.Reason = fallbackText(k, rec, an), SourceFallback, "section missing from generated output"
			traces[k] = append(traces[k], StateParseFailed)
		}
		sec.Trace = append(traces[k], StateResolved)
		out.Items = append(out.Items, sec)
	}

	log.Info().
		Int("sections", len(out.Items)).
		Int("fallback", out.FallbackCount()).
		Msg("narrative resolved")
	return out
}

func (o *Orchestrator) request(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	output, err := o.gen.Generate(ctx, prompt, o.cfg.MaxTokens)
	o.logger(ctx).Debug().
		Dur("elapsed", time.Since(start)).
		Int("prompt_chars", len(prompt)).
		Int("output_chars", len(output)).
		Msg("narrative request finished")
	return output, err
}

// Fragments requests structured detail for each scored instrument when
// detail fragments are enabled. Failed requests produce no fragment.
func (o *Orchestrator) Fragments(ctx context.Context, rec patient.Record, an analysis.Analysis) []Fragment {
	if !o.enabled() || !o.cfg.DetailFragments {
		return nil
	}
	log := o.logger(ctx)
	var out []Fragment
	for _, inst := range an.Order {
		ia := an.Instruments[inst]
		if !inst.Scored() || ia.Unparsed {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		fctx, cancel := ctx, context.CancelFunc(func() {})
		if o.cfg.Timeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		}
		f, err := o.fragments.Run(fctx, inst, buildFragmentPrompt(rec, an, inst))
		cancel()
		if err != nil {
			log.Warn().
				Err(err).
				Str("instrument", string(inst)).
				Str("failure_class", string(classifyTransportError(err))).
				Msg("fragment generation failed")
			continue
		}
		if len(f.Blocks) == 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}
