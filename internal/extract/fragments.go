package extract

import (
	"regexp"
	"strings"
)

const maxFragments = 12

func sectionPattern(headers string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)\b(?:` + headers + `)\b[:\s]*([^.]+\.[^.]*\.)`)
}

var (
	observationRes = []*regexp.Regexp{
		sectionPattern(`Clinical Observations?`),
		sectionPattern(`Behavior`),
		regexp.MustCompile(`(?is)\bObserved\b[:\s]*([^.]+\.)`),
	}
	strengthRes       = []*regexp.Regexp{sectionPattern(`Areas? of Strength|Strengths?`)}
	needRes           = []*regexp.Regexp{sectionPattern(`Areas? of (?:Need|Concern)|Weaknesses?|Challenges?`)}
	recommendationRes = []*regexp.Regexp{sectionPattern(`Recommendations?|Suggest|Recommend`)}
	implicationRes    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bImplications?\b[:\s]*([^.]+\.)`),
		regexp.MustCompile(`(?i)\bImpact on\b[:\s]*([^.]+\.)`),
		regexp.MustCompile(`(?i)\bAffects?\b[:\s]*([^.]+\.)`),
	}

	feedingConcernKeywords = []string{"choking", "gagging", "aspiration", "coughing", "difficulty swallowing", "oral motor", "texture"}
	safetyKeywords         = []string{"aspiration risk", "choking risk", "unsafe", "danger", "requires supervision", "modified consistency"}

	bulletRe = regexp.MustCompile(`(?m)^[ \t]*[-•*][ \t]+(\S[^\n]*)$`)
)

func reportFragments(inst Instrument, text string) Fragments {
	f := Fragments{
		Observations:    collect(text, observationRes),
		Strengths:       collect(text, strengthRes),
		Needs:           collect(text, needRes),
		Recommendations: collect(text, recommendationRes),
	}
	switch inst {
	case Sensory:
		f.Implications = collect(text, implicationRes)
	case FeedingA, FeedingB:
		f.Concerns = keywordSentences(text, feedingConcernKeywords)
		f.Safety = keywordSentences(text, safetyKeywords)
	}
	return f
}

func notesFragments(text string) Fragments {
	f := Fragments{
		Observations: collect(text, observationRes),
		Bullets:      Bullets(text),
	}
	for _, b := range f.Bullets {
		f.Narratives = append(f.Narratives, NarrativeFromBullet(b))
	}
	return f
}

func collect(text string, res []*regexp.Regexp) []string {
	var out []string
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, normalizeSpace(m[1]))
		}
	}
	return dedupe(out)
}

func keywordSentences(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		for _, m := range keywordPattern(kw).FindAllStringSubmatch(text, -1) {
			out = append(out, normalizeSpace(m[1]))
		}
	}
	return dedupe(out)
}

var keywordPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, kw := range append(append([]string{}, feedingConcernKeywords...), safetyKeywords...) {
		keywordPatterns[kw] = regexp.MustCompile(`(?i)([^.\n]*` + regexp.QuoteMeta(kw) + `[^.\n]*\.)`)
	}
}

func keywordPattern(kw string) *regexp.Regexp { return keywordPatterns[kw] }

// Bullets returns the text of every "-", "•" or "*" bullet line.
func Bullets(text string) []string {
	var out []string
	for _, m := range bulletRe.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return dedupe(out)
}

var bulletConversions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)overstuffed mouth`), "overstuffed their mouth"},
	{regexp.MustCompile(`(?i)gagged several times`), "gagged in response to large bolus sizes"},
	{regexp.MustCompile(`(?i)used both hands`), "used both hands during self-feeding, demonstrating"},
	{regexp.MustCompile(`(?i)limited oral control`), "but showed limited oral motor control"},
	{regexp.MustCompile(`(?i)\brefused\b`), "demonstrated refusal behaviors when presented with"},
	{regexp.MustCompile(`(?i)required (\w+) assistance`), "required ${1} level of assistance"},
	{regexp.MustCompile(`(?i)appeared (\w+)`), "appeared ${1} throughout the session"},
}

// NarrativeFromBullet rewrites a terse session note as a report sentence.
func NarrativeFromBullet(bullet string) string {
	s := strings.ToLower(normalizeSpace(bullet))
	s = strings.TrimPrefix(s, "child ")
	if s == "" {
		return ""
	}
	for _, c := range bulletConversions {
		s = c.re.ReplaceAllString(s, c.repl)
	}
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return "Child " + s
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
		if len(out) == maxFragments {
			break
		}
	}
	return out
}
