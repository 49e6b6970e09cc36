package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Attempt is the outcome of one strategy for one domain: either a matched
// score (with an optional descriptor) or no match.
type Attempt struct {
	matched    bool
	Score      DomainScore
	Descriptor string
}

// Matched reports whether the attempt produced a usable score.
func (a Attempt) Matched() bool { return a.matched }

var noMatch = Attempt{}

func matched(score DomainScore, descriptor string) Attempt {
	if score.empty() {
		return noMatch
	}
	return Attempt{matched: true, Score: score, Descriptor: descriptor}
}

// Strategy is one way of locating a domain's scores in instrument text.
type Strategy struct {
	Name  string
	Apply func(p Profile, text, domain string) Attempt
}

// strategies run most specific first; the first match wins.
var strategies = []Strategy{
	{Name: "labeled-line", Apply: labeledLine},
	{Name: "labeled-block", Apply: labeledBlock},
	{Name: "value", Apply: valueForm},
	{Name: "table-row", Apply: tableRow},
}

const linePrefix = `(?im)^[ \t]*(?:[-•*|][ \t]*)?`

func domainPattern(domain string) string {
	return regexp.QuoteMeta(domain)
}

// Domain headings must be followed by a separator so that "Social" does not
// claim a "Social-Emotional" line.
const domainEnd = `(?:[ \t]*[:|=][ \t]*|[ \t]+)`

type regexCache struct {
	m map[string]*regexp.Regexp
}

var patternCache = regexCache{m: map[string]*regexp.Regexp{}}

func init() {
	for _, p := range profiles {
		for _, d := range p.Domains {
			q := domainPattern(d)
			patternCache.m["line:"+d] = regexp.MustCompile(linePrefix + q + domainEnd + `([^\n]*)$`)
			patternCache.m["block:"+d] = regexp.MustCompile(linePrefix + q + `[ \t]*:?[ \t]*\n((?:[^\n]*\n?){1,3})`)
			patternCache.m["value:"+d] = regexp.MustCompile(linePrefix + q + `[ \t]*[:=][ \t]*(\d+)([^\n]*)$`)
			patternCache.m["row3:"+d] = regexp.MustCompile(linePrefix + q + `[ \t|]+(\d+)[ \t|]+(\d+)[ \t|]+(\d+)(?:[ \t|]+(\S+))?`)
			patternCache.m["row1:"+d] = regexp.MustCompile(linePrefix + q + `[ \t|]+(\d+)\b([^\n]*)$`)
		}
		for _, c := range p.Composites {
			patternCache.m["composite:"+c] = regexp.MustCompile(`(?i)\b` + domainPattern(c) + `\b[^\d\n]{0,32}?(\d+)`)
		}
	}
}

func (c regexCache) get(kind, name string) *regexp.Regexp {
	return c.m[kind+":"+name]
}

// parseLabels reads every labeled field present in segment.
func parseLabels(p Profile, segment string) (DomainScore, string) {
	var score DomainScore
	for _, l := range p.labels {
		m := l.re.FindStringSubmatch(segment)
		if len(m) != 2 {
			continue
		}
		n, ok := parseInt(m[1])
		if !ok {
			continue
		}
		assignField(&score, l.field, n)
	}
	if m := ageEquivalentRe.FindStringSubmatch(segment); len(m) == 2 {
		score.AgeEquivalent = normalizeSpace(m[1])
	}
	return score, findDescriptor(p, segment)
}

func labeledLine(p Profile, text, domain string) Attempt {
	re := patternCache.get("line", domain)
	if re == nil {
		return noMatch
	}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		score, desc := parseLabels(p, m[1])
		if score.RawScore == nil && score.ScaledScore == nil {
			continue
		}
		return matched(score, desc)
	}
	return noMatch
}

func labeledBlock(p Profile, text, domain string) Attempt {
	re := patternCache.get("block", domain)
	if re == nil {
		return noMatch
	}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		score, desc := parseLabels(p, cutAtNextHeading(p, domain, m[1]))
		if score.RawScore == nil && score.ScaledScore == nil {
			continue
		}
		return matched(score, desc)
	}
	return noMatch
}

// cutAtNextHeading ends a block at the first line that starts another domain
// or composite of the profile, so a heading without scores cannot take its
// neighbour's values.
func cutAtNextHeading(p Profile, domain, block string) string {
	lines := strings.SplitAfter(block, "\n")
	for i, line := range lines {
		head := strings.TrimLeft(line, " \t-•*|")
		for _, other := range append(append([]string{}, p.Domains...), p.Composites...) {
			if other != domain && startsHeading(head, other) {
				return strings.Join(lines[:i], "")
			}
		}
	}
	return block
}

func startsHeading(line, name string) bool {
	if len(line) < len(name) || !strings.EqualFold(line[:len(name)], name) {
		return false
	}
	rest := line[len(name):]
	return rest == "" || strings.IndexByte(" \t:|=\r\n", rest[0]) >= 0
}

func valueForm(p Profile, text, domain string) Attempt {
	re := patternCache.get("value", domain)
	if re == nil {
		return noMatch
	}
	m := re.FindStringSubmatch(text)
	if len(m) != 3 {
		return noMatch
	}
	n, ok := parseInt(m[1])
	if !ok {
		return noMatch
	}
	var score DomainScore
	assignField(&score, p.primary, n)
	return matched(score, findDescriptor(p, m[2]))
}

func tableRow(p Profile, text, domain string) Attempt {
	if p.ScaledScores {
		re := patternCache.get("row3", domain)
		if re == nil {
			return noMatch
		}
		m := re.FindStringSubmatch(text)
		if len(m) != 5 {
			return noMatch
		}
		return matched(rowScore(m[1], m[2], m[3], m[4]), "")
	}
	re := patternCache.get("row1", domain)
	if re == nil {
		return noMatch
	}
	m := re.FindStringSubmatch(text)
	if len(m) != 3 {
		return noMatch
	}
	n, ok := parseInt(m[1])
	if !ok {
		return noMatch
	}
	var score DomainScore
	assignField(&score, p.primary, n)
	return matched(score, findDescriptor(p, m[2]))
}

// rowScore maps a raw/scaled/percentile[/age] row; unparsable cells drop out.
func rowScore(raw, scaled, pct, age string) DomainScore {
	var score DomainScore
	if n, ok := parseInt(raw); ok {
		assignField(&score, fieldRaw, n)
	}
	if n, ok := parseInt(scaled); ok {
		assignField(&score, fieldScaled, n)
	}
	if n, ok := parseInt(pct); ok {
		assignField(&score, fieldPercentile, n)
	}
	if isAgeToken(age) {
		score.AgeEquivalent = age
	}
	return score
}

var ageTokenRe = regexp.MustCompile(`^\d+[:;]\d+$|^\d+(?:mo|m|y)$`)

func isAgeToken(s string) bool {
	return s != "" && ageTokenRe.MatchString(s)
}

func findDescriptor(p Profile, segment string) string {
	if p.descriptor == nil {
		return ""
	}
	m := p.descriptor.FindStringSubmatch(segment)
	if len(m) < 2 {
		return ""
	}
	return normalizeSpace(m[1])
}

func assignField(score *DomainScore, f field, n int) {
	v := n
	switch f {
	case fieldRaw:
		score.RawScore = &v
	case fieldScaled:
		score.ScaledScore = &v
	case fieldPercentile:
		score.Percentile = &v
	}
}

// parseInt rejects captures that do not fit an int.
func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
