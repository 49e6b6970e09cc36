package narrative

import (
	"fmt"
	"strings"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/patient"
)

const systemPrompt = "You are a licensed pediatric occupational therapist writing an early intervention evaluation report. Use professional clinical language, refer to the child by name, and never invent scores that are not provided."

const maxPromptObservations = 8

var sectionGuidance = map[SectionKey]string{
	Background:        "Write 2-3 sentences explaining why the evaluation was requested (Regional Center referral) and what it is intended to determine for %s.",
	CaregiverConcerns: "Write 3-4 sentences about %s's caregiver concerns regarding development, attention, fine motor skills and transitions.",
	Observations:      "Write 6-8 sentences about %s's participation, muscle tone, attention span, task engagement and assistance needed.",
	Summary:           "Write a 6-8 sentence summary for %s covering findings, strengths, needs and the intervention plan.",
	Recommendations:   "List 4-6 therapy recommendations for %s, one per line starting with \"- \" (OT frequency, PT, ST, early intervention, feeding follow-up when indicated).",
	Goals:             "List 4 SMART occupational therapy goals, one per line, each starting with \"Within six months, %s will\" and stating measurable criteria and assistance level.",
}

// buildPrompt produces the single consolidated request covering every key.
func buildPrompt(rec patient.Record, an analysis.Analysis, keys []SectionKey) string {
	name := rec.DisplayName()
	var b strings.Builder
	fmt.Fprintf(&b, "Generate every section of a pediatric occupational therapy evaluation report for %s.\n\n", name)

	b.WriteString("PATIENT\n")
	fmt.Fprintf(&b, "- Name: %s\n", name)
	fmt.Fprintf(&b, "- Chronological age: %s\n", ageText(rec))
	fmt.Fprintf(&b, "- Caregiver: %s\n", rec.GuardianName())
	if rec.Language != "" {
		fmt.Fprintf(&b, "- Primary language: %s\n", rec.Language)
	}

	b.WriteString("\nASSESSMENT RESULTS\n")
	writeResults(&b, an)

	b.WriteString("\nFINDINGS\n")
	fmt.Fprintf(&b, "- Overall pattern: %s\n", an.OverallPattern)
	writeList(&b, "Strengths", an.Strengths)
	writeList(&b, "Needs", an.Needs)
	writeList(&b, "Sensory implications", an.SensoryImplications)
	writeList(&b, "Feeding risks", an.FeedingRisks)
	writeList(&b, "Feeding recommendations", an.FeedingRecommendations)
	writeList(&b, "Safety concerns", an.SafetyConcerns)
	writeList(&b, "Endurance concerns", an.EnduranceConcerns)
	obs := an.Observations
	if len(obs) > maxPromptObservations {
		obs = obs[:maxPromptObservations]
	}
	writeList(&b, "Session observations", obs)

	b.WriteString("\nOUTPUT FORMAT\n")
	b.WriteString("Write each section under its marker on a line by itself, in this order, using exactly these markers and no others:\n\n")
	for _, key := range keys {
		b.WriteString(key.Marker())
		b.WriteString("\n")
		b.WriteString(guidanceFor(key, name))
		b.WriteString("\n\n")
	}
	b.WriteString("Do not add headings, markdown formatting or commentary outside the markers.")
	return b.String()
}

func guidanceFor(key SectionKey, name string) string {
	if g, ok := sectionGuidance[key]; ok {
		return fmt.Sprintf(g, name)
	}
	if inst, ok := instrumentFromKey(key); ok {
		return fmt.Sprintf("Write one paragraph (4-6 sentences) interpreting %s's %s results, relating each score band to everyday function.", name, inst.Title())
	}
	return "Write one short paragraph."
}

func writeResults(b *strings.Builder, an analysis.Analysis) {
	if len(an.Order) == 0 {
		b.WriteString("- No standardized scores were available.\n")
		return
	}
	for _, inst := range an.Order {
		ia := an.Instruments[inst]
		fmt.Fprintf(b, "%s:\n", inst.Title())
		if ia.Unparsed {
			b.WriteString("  - scores could not be read from the submitted document\n")
			continue
		}
		for _, d := range ia.Domains {
			fmt.Fprintf(b, "  - %s: %s\n", d.Domain, describeDomain(d))
		}
		for _, c := range ia.Composites {
			fmt.Fprintf(b, "  - %s: standard score %d (%s, ~%d percentile)\n", c.Name, c.Score, c.Classification, c.Percentile)
		}
		if ia.Pattern != analysis.PatternNone {
			fmt.Fprintf(b, "  - pattern: %s (mean scaled score %.1f)\n", ia.Pattern, ia.AverageScaled)
		}
	}
}

func describeDomain(d analysis.DomainResult) string {
	switch {
	case d.Interpretation != nil:
		return fmt.Sprintf("scaled %d, %s (%s)", d.Interpretation.ScaledScore, d.Interpretation.Classification, d.Interpretation.PercentileBand)
	case d.Descriptor != nil:
		s := fmt.Sprintf("score %d, %s", d.Descriptor.Score, d.Descriptor.Classification)
		if d.PrintedDescriptor != "" {
			s += fmt.Sprintf(" (protocol: %s)", d.PrintedDescriptor)
		}
		return s
	case d.Score.RawScore != nil:
		return fmt.Sprintf("raw %d, no scaled score reported", *d.Score.RawScore)
	}
	return "score not reported"
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, "; "))
}

const fragmentSchemaHint = `Respond with JSON only, shaped as an object whose keys are short section ids and whose values are {"type": "header"|"paragraph"|"bullet_points"|"table", "content": ...}.
Content is a string for header and paragraph, an array of strings for bullet_points, and {"columns": [...], "rows": [[...]]} for table.`

// buildFragmentPrompt asks for structured detail blocks for one instrument.
func buildFragmentPrompt(rec patient.Record, an analysis.Analysis, inst extract.Instrument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce detailed clinical interpretation blocks for %s's %s results (age %s).\n\n", rec.DisplayName(), inst.Title(), ageText(rec))
	single := analysis.Analysis{Instruments: map[extract.Instrument]analysis.InstrumentAnalysis{inst: an.Instruments[inst]}, Order: []extract.Instrument{inst}}
	writeResults(&b, single)
	switch inst {
	case extract.Sensory:
		writeList(&b, "Real-world implications", an.SensoryImplications)
	case extract.FeedingA:
		writeList(&b, "Feeding risks", an.FeedingRisks)
		writeList(&b, "Feeding recommendations", an.FeedingRecommendations)
	case extract.FeedingB:
		writeList(&b, "Safety concerns", an.SafetyConcerns)
		writeList(&b, "Endurance concerns", an.EnduranceConcerns)
	}
	b.WriteString("\nInclude a short paragraph on functional impact and a bullet list of intervention priorities.\n\n")
	b.WriteString(fragmentSchemaHint)
	return b.String()
}
