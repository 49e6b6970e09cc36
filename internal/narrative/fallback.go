package narrative

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/scoring"
)

const maxFallbackObservations = 4

// fallbackText renders the deterministic text for a section. Every template
// names the patient so that no report section is anonymous.
func fallbackText(key SectionKey, rec patient.Record, an analysis.Analysis) string {
	name := rec.DisplayName()
	switch key {
	case Background:
		return fmt.Sprintf("A developmental evaluation was recommended by the Regional Center to determine %s's current level of performance and to guide service frequency recommendations for early intervention.", name)
	case CaregiverConcerns:
		concerns := "attention span, fine motor skills, and behavioral regulation during transitions"
		if len(an.ConcernHints) > 0 {
			concerns = joinPhrases(lowerAll(an.ConcernHints)) + " skills"
		}
		return fmt.Sprintf("%s expressed concerns regarding %s's overall development, including %s.", rec.GuardianName(), name, concerns)
	case Observations:
		var b strings.Builder
		fmt.Fprintf(&b, "%s participated in an in-clinic evaluation with cooperative affect but variable attention span. Muscle tone appeared typical with tasks requiring verbal cues and hand-over-hand assistance.", capitalize(name))
		for i, obs := range an.Observations {
			if i == maxFallbackObservations {
				break
			}
			b.WriteString(" ")
			b.WriteString(personalize(obs, capitalize(name)))
		}
		return b.String()
	case Summary:
		var b strings.Builder
		fmt.Fprintf(&b, "%s (chronological age: %s) was assessed using standardized pediatric assessment tools. Results indicate %s.", capitalize(name), ageText(rec), an.OverallPattern)
		if len(an.Strengths) > 0 {
			fmt.Fprintf(&b, " Relative strengths were observed in %s.", joinPhrases(lowerAll(an.Strengths)))
		}
		if len(an.Needs) > 0 {
			fmt.Fprintf(&b, " Areas of need include %s.", joinPhrases(lowerAll(an.Needs)))
		}
		b.WriteString(" The evaluation revealed areas requiring targeted intervention support through occupational therapy services.")
		return b.String()
	case Recommendations:
		items := []string{fmt.Sprintf("Occupational therapy 2x/week to support %s's developmental progress", name)}
		items = append(items, an.FeedingRecommendations...)
		items = append(items,
			"Speech therapy evaluation",
			"Physical therapy evaluation",
			"Early intervention services through the Regional Center",
			fmt.Sprintf("Re-evaluation in six months to monitor %s's progress", name),
		)
		return "- " + strings.Join(items, "\n- ")
	case Goals:
		goals := []string{
			"stack 4-5 one-inch blocks independently in 4 out of 5 opportunities with minimal verbal prompts, to improve visual-motor coordination and hand stability",
			"string 2-3 large beads onto a shoelace in 4 out of 5 opportunities with moderate assistance, demonstrating bilateral hand coordination",
			"use a pincer grasp to pick up and place small objects in 4 out of 5 opportunities with minimal cues, improving fine motor precision for functional tasks",
			"spontaneously scribble on paper using an age-appropriate grasp in 4 out of 5 opportunities with minimal prompts, promoting pre-writing skill development",
		}
		lines := make([]string, len(goals))
		for i, g := range goals {
			lines[i] = fmt.Sprintf("%d. Within six months, %s will %s.", i+1, name, g)
		}
		return strings.Join(lines, "\n")
	}
	if inst, ok := instrumentFromKey(key); ok {
		return interpretationFallback(inst, name, an)
	}
	return fmt.Sprintf("Further clinical interpretation for %s will be provided by the evaluating therapist.", name)
}

// interpretationFallback summarises the banded scores for one instrument.
func interpretationFallback(inst extract.Instrument, name string, an analysis.Analysis) string {
	ia, ok := an.Instruments[inst]
	if !ok || ia.Unparsed || (len(ia.Domains) == 0 && len(ia.Composites) == 0) {
		return fmt.Sprintf("Scores for %s on the %s could not be read from the submitted document; results should be reviewed from the original protocol.", name, inst.Title())
	}
	var parts []string
	for _, d := range ia.Domains {
		switch {
		case d.Interpretation != nil:
			parts = append(parts, fmt.Sprintf("In %s, %s obtained a scaled score of %d (%s, %s), which is %s; %s %s.",
				d.Domain, name, d.Interpretation.ScaledScore, d.Interpretation.Classification,
				d.Interpretation.PercentileBand, d.Interpretation.ClinicalDescription,
				name, d.Interpretation.FunctionalImplication))
		case d.Descriptor != nil:
			parts = append(parts, fmt.Sprintf("%s's %s score of %d indicates %s.", capitalize(name), d.Domain, d.Descriptor.Score, lowerFirst(d.Descriptor.Description)))
		}
	}
	for _, c := range ia.Composites {
		parts = append(parts, fmt.Sprintf("The %s standard score of %d falls in the %s range (approximately the %s percentile).",
			c.Name, c.Score, c.Classification, scoring.Ordinal(c.Percentile)))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s completed the %s; domain results are listed in the score table.", capitalize(name), inst.Title())
	}
	return strings.Join(parts, " ")
}

func instrumentFromKey(key SectionKey) (extract.Instrument, bool) {
	s := string(key)
	if !strings.HasPrefix(s, interpretationPrefix) {
		return "", false
	}
	inst, err := extract.ParseInstrument(strings.TrimPrefix(s, interpretationPrefix))
	if err != nil {
		return "", false
	}
	return inst, true
}

func ageText(rec patient.Record) string {
	if !rec.Age.Known {
		return "unknown age"
	}
	return rec.Age.Formatted
}

// personalize swaps the generic "Child" subject of converted notes for the
// patient's name.
func personalize(sentence, name string) string {
	if strings.HasPrefix(sentence, "Child ") {
		return name + sentence[len("Child"):]
	}
	return sentence
}

func capitalize(s string) string { return mapFirst(s, unicode.ToUpper) }

func lowerFirst(s string) string { return mapFirst(s, unicode.ToLower) }

// mapFirst applies fn to the first rune only; names may start with a
// multi-byte letter.
func mapFirst(s string, fn func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(fn(r)) + s[size:]
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func joinPhrases(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}

