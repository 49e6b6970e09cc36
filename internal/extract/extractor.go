package extract

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Extractor is stateless apart from its logger and safe for concurrent use.
type Extractor struct {
	log zerolog.Logger
}

func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log.With().Str("component", "extract").Logger()}
}

// Extract reads whatever the text offers for the instrument. Empty text
// yields an InstrumentRaw with empty collections and MethodNone.
func (e *Extractor) Extract(inst Instrument, text string) InstrumentRaw {
	raw := newInstrumentRaw(inst)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		e.log.Debug().Str("instrument", string(inst)).Msg("empty source text")
		return raw
	}
	raw.SourceChars = len(trimmed)
	text = normalizeText(text)

	switch inst {
	case Facesheet:
		raw.Demographics = ExtractDemographics(text)
	case ClinicalNotes:
		raw.Fragments = notesFragments(text)
	}

	p, scored := profiles[inst]
	if !scored {
		e.log.Debug().Str("instrument", string(inst)).Int("chars", raw.SourceChars).Msg("text-only instrument extracted")
		return raw
	}

	hits := map[string]int{}
	for _, domain := range p.Domains {
		for _, s := range strategies {
			a := s.Apply(p, text, domain)
			if !a.Matched() {
				continue
			}
			raw.set(domain, a.Score)
			if a.Descriptor != "" {
				raw.Descriptors[domain] = a.Descriptor
			}
			hits[s.Name]++
			break
		}
	}
	if len(raw.Domains) > 0 {
		raw.Method = MethodPrimary
	} else {
		lineScan(p, text, &raw)
		if len(raw.Domains) > 0 {
			raw.Method = MethodLineScan
		}
	}

	for _, c := range p.Composites {
		re := patternCache.get("composite", c)
		if m := re.FindStringSubmatch(text); len(m) == 2 {
			if n, ok := parseInt(m[1]); ok {
				raw.Composites[c] = n
			}
		}
	}
	raw.Fragments = reportFragments(inst, text)

	ev := e.log.Debug().
		Str("instrument", string(inst)).
		Str("method", string(raw.Method)).
		Int("domains", len(raw.Domains)).
		Int("composites", len(raw.Composites))
	for name, n := range hits {
		ev = ev.Int("strategy_"+name, n)
	}
	ev.Msg("instrument extracted")
	if raw.Method == MethodNone {
		e.log.Info().Str("instrument", string(inst)).Msg("no domain scores found in supplied text")
	}
	return raw
}

var lineScanRe = regexp.MustCompile(`(?m)^[ \t]*([A-Za-z][A-Za-z'/\-]*(?:[ \t][A-Za-z][A-Za-z'/\-]*)*)[ \t]+(\d+)[ \t]+(\d+)[ \t]+(\d+)(?:[ \t]+(\S+))?[ \t]*$`)

// lineScan is the last resort: any "<word> <int> <int> <int> [age]" line.
// Known domain names are canonicalised; other labels are kept as written.
func lineScan(p Profile, text string, raw *InstrumentRaw) {
	known := map[string]string{}
	for _, d := range p.Domains {
		known[domainKey(d)] = d
	}
	for _, m := range lineScanRe.FindAllStringSubmatch(text, -1) {
		name := normalizeSpace(m[1])
		if canonical, ok := known[domainKey(name)]; ok {
			name = canonical
		}
		score := rowScore(m[2], m[3], m[4], m[5])
		if score.empty() {
			continue
		}
		raw.set(name, score)
	}
}

func domainKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", " "))
}

// normalizeText folds typographic variants that PDF decoders emit.
func normalizeText(s string) string {
	r := strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		" ", " ",
		"‐", "-",
		"‑", "-",
		"–", "-",
		"—", "-",
		"’", "'",
	)
	return r.Replace(s)
}
