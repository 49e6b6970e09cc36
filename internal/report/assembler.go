package report

import (
	"strconv"
	"strings"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/narrative"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/scoring"
)

// resultOrder is the fixed order of instrument result sections.
var resultOrder = []extract.Instrument{
	extract.Cognitive,
	extract.SocialAdaptive,
	extract.Sensory,
	extract.FeedingA,
	extract.FeedingB,
}

var compositeColumns = []string{"Composite", "Standard Score", "Percentile", "Range", "Classification", "Clinical Significance"}

const (
	defaultTitle       = "Occupational Therapy Evaluation"
	missingSectionText = "Not available for this evaluation."
	defaultTherapist   = "Evaluating Occupational Therapist"
)

func scoresKey(inst extract.Instrument) string     { return string(inst) + "_scores" }
func compositesKey(inst extract.Instrument) string { return string(inst) + "_composites" }

type Assembler struct {
	cfg config.ReportConfig
}

func NewAssembler(cfg config.ReportConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble builds the document in its fixed section order. It depends only on
// its arguments, so identical inputs yield identical documents. The returned
// error is always an *InvariantError.
func (a *Assembler) Assemble(rec patient.Record, an analysis.Analysis, secs narrative.Sections, fragments []narrative.Fragment) (Document, error) {
	b := &builder{}
	title := strings.TrimSpace(a.cfg.Title)
	if title == "" {
		title = defaultTitle
	}
	b.header("title", 1, title)
	if clinic := strings.TrimSpace(a.cfg.Clinic); clinic != "" {
		b.paragraph("clinic", clinic)
	}
	b.table("demographics", demographicsTable(rec))

	b.header("background_header", 2, "Background")
	b.paragraph("background", sectionText(secs, narrative.Background))

	b.header("caregiver_concerns_header", 2, "Caregiver Concerns")
	b.paragraph("caregiver_concerns", sectionText(secs, narrative.CaregiverConcerns))

	b.header("observations_header", 2, "Clinical Observations")
	b.paragraph("observations", sectionText(secs, narrative.Observations))
	b.bullets("observation_notes", an.NoteBullets)

	b.header("assessment_tools_header", 2, "Assessment Tools")
	b.bullets("assessment_tools", assessmentTools(an))

	byInstrument := make(map[extract.Instrument][]narrative.Fragment, len(fragments))
	for _, f := range fragments {
		byInstrument[f.Instrument] = append(byInstrument[f.Instrument], f)
	}
	if len(an.Order) > 0 {
		b.header("results_header", 2, "Assessment Results")
	}
	for _, inst := range resultOrder {
		ia, ok := an.Instruments[inst]
		if !ok {
			continue
		}
		a.instrumentSection(b, inst, ia, an, secs, byInstrument[inst])
	}

	b.header("findings_header", 2, "Findings")
	b.paragraph("overall_pattern", "Overall pattern: "+an.OverallPattern+".")
	b.listOr("strengths", "Relative strengths", an.Strengths, "No relative strengths were identified from scaled scores.")
	b.labeledBullets("documented_strengths", "Strengths noted in assessment protocols", an.DocumentedStrengths)
	b.listOr("needs", "Areas of need", an.Needs, "No areas of need were identified from scaled scores.")
	b.labeledBullets("documented_needs", "Needs noted in assessment protocols", an.DocumentedNeeds)

	b.header("recommendations_header", 2, "Recommendations")
	recs := appendUnique(narrative.SplitList(secs.Text(narrative.Recommendations)), an.ExtractedRecommendations)
	b.listOr("recommendations", "", recs, missingSectionText)

	b.header("goals_header", 2, "Goals")
	b.listOr("goals", "", narrative.SplitList(secs.Text(narrative.Goals)), missingSectionText)

	b.header("summary_header", 2, "Summary")
	b.paragraph("summary", sectionText(secs, narrative.Summary))

	b.header("signature_header", 2, "Signature")
	b.paragraph("signature", a.signature(rec))
	if d := strings.TrimSpace(a.cfg.Disclaimer); d != "" {
		b.paragraph("disclaimer", d)
	}

	doc := Document{Title: title, Blocks: b.blocks}
	if err := Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (a *Assembler) instrumentSection(b *builder, inst extract.Instrument, ia analysis.InstrumentAnalysis, an analysis.Analysis, secs narrative.Sections, frags []narrative.Fragment) {
	prefix := string(inst)
	b.header(prefix+"_header", 3, inst.Title())
	b.table(scoresKey(inst), scoreTable(inst, ia))
	if ia.Unparsed {
		b.paragraph(prefix+"_unparsed", "Scores could not be read from the submitted document; values are shown as N/A.")
	}
	if len(ia.Composites) > 0 {
		b.table(compositesKey(inst), compositeTable(ia.Composites))
	}
	b.paragraph(prefix+"_interpretation", sectionText(secs, narrative.InterpretationKey(inst)))

	switch inst {
	case extract.Sensory:
		b.labeledBullets(prefix+"_implications", "Real-world implications", an.SensoryImplications)
	case extract.FeedingA:
		b.labeledBullets(prefix+"_concerns", "Feeding concerns", ia.Concerns)
		b.labeledBullets(prefix+"_risks", "Feeding risks", an.FeedingRisks)
		b.labeledBullets(prefix+"_recommendations", "Feeding recommendations", an.FeedingRecommendations)
	case extract.FeedingB:
		b.labeledBullets(prefix+"_concerns", "Feeding concerns", ia.Concerns)
		b.labeledBullets(prefix+"_safety", "Safety concerns", an.SafetyConcerns)
		b.labeledBullets(prefix+"_endurance", "Endurance concerns", an.EnduranceConcerns)
	}

	for _, f := range frags {
		for _, fb := range f.Blocks {
			blk, ok := fragmentBlock(prefix+"_detail_"+fb.Key, fb)
			if ok && !b.has(blk.Key) && validateBlock(blk) == nil {
				b.add(blk)
			}
		}
	}
}

func (a *Assembler) signature(rec patient.Record) string {
	name := strings.TrimSpace(a.cfg.TherapistName)
	if name == "" {
		name = defaultTherapist
	}
	if cred := strings.TrimSpace(a.cfg.TherapistCredentials); cred != "" {
		name += ", " + cred
	}
	lines := []string{name, "Occupational Therapist"}
	if clinic := strings.TrimSpace(a.cfg.Clinic); clinic != "" {
		lines = append(lines, clinic)
	}
	lines = append(lines, "Report date: "+rec.ReportDate)
	return strings.Join(lines, "\n")
}

func demographicsTable(rec patient.Record) *Table {
	rows := [][]string{
		{"Name", rec.Name},
		{"Date of Birth", rec.DateOfBirth},
		{"Chronological Age", rec.Age.Formatted},
		{"Encounter Date", rec.EncounterDate},
		{"Report Date", rec.ReportDate},
		{"Caregiver", rec.Guardian},
		{"UCI Number", rec.UCINumber},
		{"Sex", rec.Sex},
		{"Primary Language", rec.Language},
	}
	for _, row := range rows {
		row[1] = cell(row[1])
	}
	return &Table{Columns: []string{"Field", "Value"}, Rows: rows}
}

func assessmentTools(an analysis.Analysis) []string {
	var items []string
	for _, inst := range resultOrder {
		if !an.Has(inst) {
			continue
		}
		if p, ok := extract.ProfileFor(inst); ok {
			items = append(items, p.Tool)
		}
	}
	if len(an.NoteBullets) > 0 {
		items = append(items, "Review of clinical session notes")
	}
	return append(items, "Clinical observation", "Caregiver interview")
}

// scoreTable lists extracted domains in encounter order. An instrument whose
// text yielded no scores lists its known domains with every value N/A.
func scoreTable(inst extract.Instrument, ia analysis.InstrumentAnalysis) *Table {
	t := &Table{Columns: append([]string{}, ResultColumns...), Rows: [][]string{}}
	if ia.Unparsed || len(ia.Domains) == 0 {
		if p, ok := extract.ProfileFor(inst); ok {
			for _, d := range p.Domains {
				t.Rows = append(t.Rows, []string{d, NotAvailable, NotAvailable, NotAvailable, NotAvailable, NotAvailable})
			}
		}
		return t
	}
	for _, d := range ia.Domains {
		pct := intCell(d.Score.Percentile)
		if pct == NotAvailable && d.Interpretation != nil {
			pct = d.Interpretation.PercentileBand
		}
		t.Rows = append(t.Rows, []string{
			cell(d.Domain),
			intCell(d.Score.RawScore),
			intCell(d.Score.ScaledScore),
			cell(pct),
			cell(d.Score.AgeEquivalent),
			cell(d.Classification()),
		})
	}
	return t
}

func compositeTable(comps []scoring.CompositeInterpretation) *Table {
	t := &Table{Columns: append([]string{}, compositeColumns...)}
	for _, c := range comps {
		t.Rows = append(t.Rows, []string{
			cell(c.Name),
			strconv.Itoa(c.Score),
			scoring.Ordinal(c.Percentile),
			cell(c.RangeDescription),
			cell(string(c.Classification)),
			cell(c.ClinicalSignificance),
		})
	}
	return t
}

func fragmentBlock(key string, fb narrative.FragmentBlock) (Block, bool) {
	switch BlockType(fb.Type) {
	case BlockHeader:
		return Block{Type: BlockHeader, Key: key, Level: 4, Text: fb.Text}, true
	case BlockParagraph:
		return Block{Type: BlockParagraph, Key: key, Text: fb.Text}, true
	case BlockBulletPoints:
		return Block{Type: BlockBulletPoints, Key: key, Items: fb.Items}, true
	case BlockTable:
		if fb.Table == nil {
			return Block{}, false
		}
		return Block{Type: BlockTable, Key: key, Table: &Table{Columns: fb.Table.Columns, Rows: fb.Table.Rows}}, true
	}
	return Block{}, false
}

func sectionText(secs narrative.Sections, key narrative.SectionKey) string {
	if t := strings.TrimSpace(secs.Text(key)); t != "" {
		return t
	}
	return missingSectionText
}

func cell(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return strings.TrimSpace(s)
}

func intCell(v *int) string {
	if v == nil {
		return NotAvailable
	}
	return strconv.Itoa(*v)
}


func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range append(append([]string{}, base...), extra...) {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

type builder struct {
	blocks []Block
	keys   map[string]bool
}

func (b *builder) add(blk Block) {
	if b.keys == nil {
		b.keys = map[string]bool{}
	}
	b.keys[blk.Key] = true
	b.blocks = append(b.blocks, blk)
}

func (b *builder) has(key string) bool { return b.keys[key] }

func (b *builder) header(key string, level int, text string) {
	b.add(Block{Type: BlockHeader, Key: key, Level: level, Text: text})
}

func (b *builder) paragraph(key, text string) {
	b.add(Block{Type: BlockParagraph, Key: key, Text: text})
}

func (b *builder) table(key string, t *Table) {
	b.add(Block{Type: BlockTable, Key: key, Table: t})
}

// bullets adds nothing for an empty list.
func (b *builder) bullets(key string, items []string) {
	if len(items) == 0 {
		return
	}
	b.add(Block{Type: BlockBulletPoints, Key: key, Items: append([]string{}, items...)})
}

func (b *builder) labeledBullets(key, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.header(key+"_header", 4, label)
	b.bullets(key, items)
}

// listOr adds a bullet list, or the empty text as a paragraph.
func (b *builder) listOr(key, label string, items []string, empty string) {
	if label != "" {
		b.header(key+"_header", 4, label)
	}
	if len(items) == 0 {
		b.paragraph(key, empty)
		return
	}
	b.bullets(key, items)
}
