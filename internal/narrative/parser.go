package narrative

import (
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenMarker
)

type token struct {
	kind  tokenKind
	value string
}

// Accepts "[SUMMARY]", "**[SUMMARY]**", "## [SUMMARY]:" and inline text after
// the marker.
var markerRe = regexp.MustCompile(`^\s*(?:#+\s*)?\**\s*\[([A-Za-z][A-Za-z0-9_ \-]*)\]\s*\**\s*:?\s*(.*)$`)

func normalizeKey(s string) SectionKey {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return SectionKey(s)
}

// tokenize splits model output into marker and text lines. A bracketed word
// followed by text on the same line only counts as a marker when it names an
// expected section, so prose such as "[Name] will..." survives.
func tokenize(output string, expected map[SectionKey]bool) []token {
	var out []token
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		m := markerRe.FindStringSubmatch(line)
		if m == nil {
			out = append(out, token{kind: tokenText, value: line})
			continue
		}
		key := normalizeKey(m[1])
		rest := strings.TrimSpace(m[2])
		if rest != "" && !expected[key] {
			out = append(out, token{kind: tokenText, value: line})
			continue
		}
		out = append(out, token{kind: tokenMarker, value: string(key)})
		if rest != "" {
			out = append(out, token{kind: tokenText, value: rest})
		}
	}
	return out
}

// parseSections assembles tokens into section bodies. Text before the first
// marker and under unknown markers is dropped; a repeated marker does not
// replace a section that already has content.
func parseSections(tokens []token, expected map[SectionKey]bool) (map[SectionKey]string, []string) {
	bodies := map[SectionKey][]string{}
	var unknown []string
	var current SectionKey
	active := false

	for _, tok := range tokens {
		switch tok.kind {
		case tokenMarker:
			key := SectionKey(tok.value)
			if !expected[key] {
				unknown = append(unknown, tok.value)
				active = false
				continue
			}
			if strings.TrimSpace(strings.Join(bodies[key], "")) != "" {
				active = false
				continue
			}
			current, active = key, true
		case tokenText:
			if active {
				bodies[current] = append(bodies[current], tok.value)
			}
		}
	}

	out := make(map[SectionKey]string, len(bodies))
	for key, lines := range bodies {
		if text := cleanBody(lines); text != "" {
			out[key] = text
		}
	}
	return out, unknown
}

var blankRun = regexp.MustCompile(`\n{3,}`)

func cleanBody(lines []string) string {
	trimmed := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed = append(trimmed, strings.TrimRight(l, " \t"))
	}
	text := strings.TrimSpace(strings.Join(trimmed, "\n"))
	return blankRun.ReplaceAllString(text, "\n\n")
}

func keySet(keys []SectionKey) map[SectionKey]bool {
	set := make(map[SectionKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
