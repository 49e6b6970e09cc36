package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/narrative"
	"github.com/joelkehle/otreport/internal/patient"
)

type fixture struct {
	rec  patient.Record
	an   analysis.Analysis
	secs narrative.Sections
}

func newFixture(t *testing.T, texts map[extract.Instrument]string) fixture {
	t.Helper()
	ex := extract.NewExtractor(zerolog.Nop())
	raws := map[extract.Instrument]extract.InstrumentRaw{}
	for inst, text := range texts {
		raws[inst] = ex.Extract(inst, text)
	}
	an := analysis.NewAnalyzer(zerolog.Nop()).Analyze(raws)
	rec := patient.NewRecord(patient.Input{
		Name:          "Ava Chen",
		DateOfBirth:   "2022-03-15",
		EncounterDate: "2024-06-15",
		ReportDate:    "06/20/2024",
		Guardian:      "Mei Chen",
	}, time.Now())
	secs := narrative.NewOrchestrator(nil, config.Default().Generation, zerolog.Nop()).Generate(context.Background(), rec, an)
	return fixture{rec: rec, an: an, secs: secs}
}

var standardTexts = map[extract.Instrument]string{
	extract.Cognitive:     "Cognitive Raw Score: 12 Scaled Score: 9\nFine Motor Raw Score: 20 Scaled Score: 5\nCognitive Composite: 95\n",
	extract.Sensory:       "Caregiver questionnaire received; scoring pages missing.",
	extract.ClinicalNotes: "- overstuffed their mouth during snack\n- needed hand-over-hand assistance with blocks\n",
}

func newTestAssembler() *Assembler {
	cfg := config.Default().Report
	cfg.TherapistName = "Jordan Lee"
	cfg.Clinic = "Harbor Pediatric Therapy"
	return NewAssembler(cfg)
}

func indexOf(t *testing.T, doc Document, key string) int {
	t.Helper()
	for i, b := range doc.Blocks {
		if b.Key == key {
			return i
		}
	}
	t.Fatalf("block %q not found in %v", key, doc.Keys())
	return -1
}

func TestAssembleSectionOrder(t *testing.T) {
	f := newFixture(t, standardTexts)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	order := []string{
		"title", "demographics", "background", "caregiver_concerns", "observations",
		"observation_notes", "assessment_tools", "cognitive_scores", "cognitive_composites",
		"cognitive_interpretation", "sensory_scores", "overall_pattern", "strengths", "needs",
		"recommendations", "goals", "summary", "signature",
	}
	prev := -1
	for _, key := range order {
		i := indexOf(t, doc, key)
		assert.Greater(t, i, prev, key)
		prev = i
	}
	assert.Equal(t, BlockHeader, doc.Blocks[0].Type)
	assert.Equal(t, config.Default().Report.Title, doc.Title)
}

func TestAssembleResultTables(t *testing.T) {
	f := newFixture(t, standardTexts)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	scores, ok := doc.Find("cognitive_scores")
	require.True(t, ok)
	assert.Equal(t, ResultColumns, scores.Table.Columns)
	require.Len(t, scores.Table.Rows, 2)
	row := scores.Table.Rows[0]
	require.Len(t, row, 6)
	assert.Equal(t, []string{"Cognitive", "12", "9"}, row[:3])
	assert.Equal(t, NotAvailable, row[4])
	assert.Equal(t, "Average", row[5])

	comps, ok := doc.Find("cognitive_composites")
	require.True(t, ok)
	assert.Len(t, comps.Table.Columns, 6)
	assert.Equal(t, "Cognitive Composite", comps.Table.Rows[0][0])
	assert.Equal(t, "95", comps.Table.Rows[0][1])
}

func TestAssembleUnparsedInstrumentShowsKnownDomains(t *testing.T) {
	f := newFixture(t, standardTexts)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	sensory, ok := doc.Find("sensory_scores")
	require.True(t, ok)
	require.Len(t, sensory.Table.Rows, 4)
	assert.Equal(t, "Seeking", sensory.Table.Rows[0][0])
	for _, row := range sensory.Table.Rows {
		assert.Equal(t, []string{NotAvailable, NotAvailable, NotAvailable, NotAvailable, NotAvailable}, row[1:])
	}
	_, ok = doc.Find("sensory_unparsed")
	assert.True(t, ok)
}

func TestAssembleOmitsAbsentInstruments(t *testing.T) {
	f := newFixture(t, standardTexts)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	for _, inst := range []extract.Instrument{extract.SocialAdaptive, extract.FeedingA, extract.FeedingB} {
		_, ok := doc.Find(string(inst) + "_header")
		assert.False(t, ok, inst)
	}
}

func TestAssembleWithoutInstruments(t *testing.T) {
	f := newFixture(t, nil)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	_, ok := doc.Find("results_header")
	assert.False(t, ok)
	tools, _ := doc.Find("assessment_tools")
	assert.Equal(t, []string{"Clinical observation", "Caregiver interview"}, tools.Items)
	strengths, _ := doc.Find("strengths")
	assert.Equal(t, BlockParagraph, strengths.Type)
}

func TestAssembleIsIdempotent(t *testing.T) {
	f := newFixture(t, standardTexts)
	a := newTestAssembler()
	first, err := a.Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)
	second, err := a.Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssembleListsAndSignature(t *testing.T) {
	f := newFixture(t, standardTexts)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	goals, _ := doc.Find("goals")
	require.Len(t, goals.Items, 4)
	for _, g := range goals.Items {
		assert.True(t, strings.HasPrefix(g, "Within six months, Ava Chen will"), g)
	}
	recs, _ := doc.Find("recommendations")
	assert.Contains(t, recs.Items[0], "Occupational therapy 2x/week")

	sig, _ := doc.Find("signature")
	assert.Equal(t, "Jordan Lee, OTR/L\nOccupational Therapist\nHarbor Pediatric Therapy\nReport date: 06/20/2024", sig.Text)

	demo, _ := doc.Find("demographics")
	assert.Contains(t, demo.Table.Rows, []string{"UCI Number", NotAvailable})
	assert.Contains(t, demo.Table.Rows, []string{"Chronological Age", "2 years, 3 months"})
}

func TestAssembleFragments(t *testing.T) {
	f := newFixture(t, standardTexts)
	frags := []narrative.Fragment{{
		Instrument: extract.Cognitive,
		Path:       narrative.FragmentParsed,
		Blocks: []narrative.FragmentBlock{
			{Key: "impact", Type: "paragraph", Text: "Fine motor delays limit play."},
			{Key: "blank", Type: "header", Text: "  "},
			{Key: "impact", Type: "paragraph", Text: "duplicate"},
			{Key: "scores", Type: "table", Table: &narrative.FragmentTable{Columns: []string{"Area", "Note"}, Rows: [][]string{{"Grasp", "Emerging"}}}},
		},
	}}
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, frags)
	require.NoError(t, err)

	impact, ok := doc.Find("cognitive_detail_impact")
	require.True(t, ok)
	assert.Equal(t, "Fine motor delays limit play.", impact.Text)
	_, ok = doc.Find("cognitive_detail_blank")
	assert.False(t, ok)
	tbl, ok := doc.Find("cognitive_detail_scores")
	require.True(t, ok)
	assert.Len(t, tbl.Table.Columns, 2)
	assert.Less(t, indexOf(t, doc, "cognitive_detail_impact"), indexOf(t, doc, "sensory_header"))
}

func TestValidateViolations(t *testing.T) {
	header := Block{Type: BlockHeader, Key: "title", Level: 1, Text: "Report"}
	for _, tc := range []struct {
		name string
		doc  Document
		key  string
	}{
		{name: "empty", doc: Document{}},
		{name: "no leading header", doc: Document{Blocks: []Block{{Type: BlockParagraph, Key: "p", Text: "x"}}}, key: "p"},
		{name: "duplicate key", doc: Document{Blocks: []Block{header, header}}, key: "title"},
		{name: "empty bullets", doc: Document{Blocks: []Block{header, {Type: BlockBulletPoints, Key: "goals"}}}, key: "goals"},
		{name: "result table width", doc: Document{Blocks: []Block{header, {
			Type: BlockTable, Key: "cognitive_scores",
			Table: &Table{Columns: ResultColumns[:5], Rows: [][]string{{"a", "b", "c", "d", "e"}}},
		}}}, key: "cognitive_scores"},
		{name: "ragged row", doc: Document{Blocks: []Block{header, {
			Type: BlockTable, Key: "demographics",
			Table: &Table{Columns: []string{"Field", "Value"}, Rows: [][]string{{"Name"}}},
		}}}, key: "demographics"},
		{name: "blank cell", doc: Document{Blocks: []Block{header, {
			Type: BlockTable, Key: "demographics",
			Table: &Table{Columns: []string{"Field", "Value"}, Rows: [][]string{{"Name", " "}}},
		}}}, key: "demographics"},
		{name: "unknown type", doc: Document{Blocks: []Block{header, {Type: "image", Key: "logo"}}}, key: "logo"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.doc)
			var inv *InvariantError
			require.True(t, errors.As(err, &inv), "got %v", err)
			assert.Equal(t, tc.key, inv.Key)
		})
	}
}

func TestBlockJSONContract(t *testing.T) {
	tbl := Block{Type: BlockTable, Key: "demographics", Table: &Table{Columns: []string{"Field", "Value"}, Rows: [][]string{{"Name", "Ava"}}}}
	raw, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"table","key":"demographics","content":{"columns":["Field","Value"],"rows":[["Name","Ava"]]}}`, string(raw))

	raw, err = json.Marshal(Block{Type: BlockBulletPoints, Key: "goals", Items: []string{"one"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"bullet_points","key":"goals","content":["one"]}`, string(raw))

	raw, err = json.Marshal(Block{Type: BlockHeader, Key: "title", Level: 1, Text: "Report"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"header","key":"title","level":1,"content":"Report"}`, string(raw))
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	f := newFixture(t, standardTexts)
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, doc, back)
}

func TestAssembleCarriesExtractedFeedingConcerns(t *testing.T) {
	f := newFixture(t, map[extract.Instrument]string{
		extract.FeedingA: "Oral Motor Score: 5 Risk: Moderate\nFrequent gagging was observed with mixed textures.\nStrengths: Accepts purees readily. Enjoys mealtimes with family.\n",
		extract.FeedingB: "Physiology Score: 9\nChoking episodes were reported at dinner.\n",
	})
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)

	concernsA, ok := doc.Find("feeding_a_concerns")
	require.True(t, ok, doc.Keys())
	assert.Equal(t, BlockBulletPoints, concernsA.Type)
	assert.Contains(t, concernsA.Items, "Frequent gagging was observed with mixed textures.")
	assert.Less(t, indexOf(t, doc, "feeding_a_scores"), indexOf(t, doc, "feeding_a_concerns"))
	assert.Less(t, indexOf(t, doc, "feeding_a_concerns"), indexOf(t, doc, "feeding_b_header"))

	concernsB, ok := doc.Find("feeding_b_concerns")
	require.True(t, ok)
	assert.Equal(t, []string{"Choking episodes were reported at dinner."}, concernsB.Items)

	documented, ok := doc.Find("documented_strengths")
	require.True(t, ok)
	assert.Equal(t, []string{"Accepts purees readily. Enjoys mealtimes with family."}, documented.Items)
	assert.Less(t, indexOf(t, doc, "strengths"), indexOf(t, doc, "documented_strengths"))

	_, ok = doc.Find("documented_needs")
	assert.False(t, ok)
}

func TestAssembleOmitsConcernsWhenNoneExtracted(t *testing.T) {
	f := newFixture(t, map[extract.Instrument]string{extract.FeedingA: "Oral Motor Score: 2 Risk: Low\n"})
	doc, err := newTestAssembler().Assemble(f.rec, f.an, f.secs, nil)
	require.NoError(t, err)
	_, ok := doc.Find("feeding_a_concerns")
	assert.False(t, ok)
}
