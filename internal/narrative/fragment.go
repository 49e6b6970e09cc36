package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joelkehle/otreport/internal/extract"
)

const fragmentSchemaJSON = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "object",
    "required": ["type", "content"],
    "properties": {
      "type": {"enum": ["header", "paragraph", "bullet_points", "table"]}
    },
    "allOf": [
      {
        "if": {"properties": {"type": {"enum": ["header", "paragraph"]}}},
        "then": {"properties": {"content": {"type": "string", "minLength": 1}}}
      },
      {
        "if": {"properties": {"type": {"const": "bullet_points"}}},
        "then": {"properties": {"content": {"type": "array", "minItems": 1, "items": {"type": "string"}}}}
      },
      {
        "if": {"properties": {"type": {"const": "table"}}},
        "then": {"properties": {"content": {
          "type": "object",
          "required": ["columns", "rows"],
          "properties": {
            "columns": {"type": "array", "minItems": 1, "items": {"type": "string"}},
            "rows": {"type": "array", "items": {"type": "array", "items": {"type": ["string", "number", "null"]}}}
          }
        }}}
      }
    ]
  }
}`

var fragmentSchema = jsonschema.MustCompileString("fragment.json", fragmentSchemaJSON)

// maxRepairs bounds local clean-up before output is accepted as prose.
const maxRepairs = 2

type FragmentPath string

const (
	FragmentParsed      FragmentPath = "parsed"
	FragmentRepaired    FragmentPath = "repaired"
	FragmentBestEffort  FragmentPath = "best_effort"
	FragmentUnavailable FragmentPath = "unavailable"
)

type FragmentTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type FragmentBlock struct {
	Key   string         `json:"key"`
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	Items []string       `json:"items,omitempty"`
	Table *FragmentTable `json:"table,omitempty"`
}

// Fragment is the structured detail produced for one instrument.
type Fragment struct {
	Instrument extract.Instrument `json:"instrument"`
	Blocks     []FragmentBlock    `json:"blocks"`
	Path       FragmentPath       `json:"path"`
	Attempts   int                `json:"attempts"`
	Repairs    []string           `json:"repairs,omitempty"`
}

type FragmentExecutor struct {
	gen       Generator
	maxTokens int
	log       zerolog.Logger
}

func NewFragmentExecutor(gen Generator, maxTokens int, log zerolog.Logger) *FragmentExecutor {
	return &FragmentExecutor{gen: gen, maxTokens: maxTokens, log: log}
}

// Run requests one fragment. A generation error is returned unchanged; any
// text that comes back yields a fragment, at worst as a single paragraph.
func (e *FragmentExecutor) Run(ctx context.Context, inst extract.Instrument, prompt string) (Fragment, error) {
	if e.gen == nil {
		return Fragment{Instrument: inst, Path: FragmentUnavailable}, ErrGenerationDisabled
	}
	raw, err := e.gen.Generate(ctx, prompt, e.maxTokens)
	if err != nil {
		return Fragment{Instrument: inst, Path: FragmentUnavailable}, fmt.Errorf("fragment %s: %w", inst, err)
	}
	f := resolveFragment(raw)
	f.Instrument = inst
	e.log.Debug().
		Str("instrument", string(inst)).
		Str("path", string(f.Path)).
		Int("attempts", f.Attempts).
		Int("blocks", len(f.Blocks)).
		Msg("fragment resolved")
	return f, nil
}

type repair struct {
	name  string
	apply func(string) string
}

// repairs run cumulatively: the second sees the output of the first.
var repairs = [maxRepairs]repair{
	{name: "strip_code_fences", apply: stripCodeFences},
	{name: "normalize_json", apply: func(s string) string { return removeTrailingCommas(normalizeQuotes(s)) }},
}

func resolveFragment(raw string) Fragment {
	text := strings.TrimSpace(raw)
	f := Fragment{Attempts: 1}
	if blocks, err := decodeFragment(text); err == nil {
		f.Blocks, f.Path = blocks, FragmentParsed
		return f
	}
	for _, r := range repairs {
		f.Attempts++
		text = r.apply(text)
		f.Repairs = append(f.Repairs, r.name)
		if blocks, err := decodeFragment(text); err == nil {
			f.Blocks, f.Path = blocks, FragmentRepaired
			return f
		}
	}
	f.Path = FragmentBestEffort
	if prose := strings.TrimSpace(stripCodeFences(raw)); prose != "" {
		f.Blocks = []FragmentBlock{{Key: "detail", Type: "paragraph", Text: prose}}
	}
	return f
}

func decodeFragment(text string) ([]FragmentBlock, error) {
	if text == "" {
		return nil, errors.New("empty fragment")
	}
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if err := fragmentSchema.Validate(doc); err != nil {
		return nil, err
	}
	keys, values, err := orderedObject([]byte(text))
	if err != nil {
		return nil, err
	}
	blocks := make([]FragmentBlock, 0, len(keys))
	for i, key := range keys {
		var entry struct {
			Type    string          `json:"type"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(values[i], &entry); err != nil {
			return nil, err
		}
		b := FragmentBlock{Key: key, Type: entry.Type}
		switch entry.Type {
		case "header", "paragraph":
			if err := json.Unmarshal(entry.Content, &b.Text); err != nil {
				return nil, err
			}
		case "bullet_points":
			if err := json.Unmarshal(entry.Content, &b.Items); err != nil {
				return nil, err
			}
		case "table":
			var t struct {
				Columns []string `json:"columns"`
				Rows    [][]any  `json:"rows"`
			}
			if err := json.Unmarshal(entry.Content, &t); err != nil {
				return nil, err
			}
			b.Table = &FragmentTable{Columns: t.Columns}
			for _, row := range t.Rows {
				b.Table.Rows = append(b.Table.Rows, cellStrings(row, len(t.Columns)))
			}
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// orderedObject walks a top-level object keeping key order.
func orderedObject(data []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("fragment is not an object")
	}
	var keys []string
	var values []json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	return keys, values, nil
}

// cellStrings pads or trims a row to width, rendering empty cells as N/A.
func cellStrings(row []any, width int) []string {
	out := make([]string, width)
	for i := range out {
		out[i] = "N/A"
		if i >= len(row) || row[i] == nil {
			continue
		}
		switch v := row[i].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				out[i] = v
			}
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); len(m) == 2 {
		s = m[1]
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start > 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

var quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "‘", "'", "’", "'")

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

func removeTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}
