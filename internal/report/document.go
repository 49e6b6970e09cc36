// Package report assembles the ordered block document for one evaluation.
package report

import (
	"encoding/json"
	"fmt"
)

type BlockType string

const (
	BlockHeader       BlockType = "header"
	BlockParagraph    BlockType = "paragraph"
	BlockBulletPoints BlockType = "bullet_points"
	BlockTable        BlockType = "table"
)

// NotAvailable fills table cells with no value.
const NotAvailable = "N/A"

// ResultColumns is the fixed header of every score table.
var ResultColumns = []string{"Domain", "Raw Score", "Scaled Score", "Percentile", "Age Equivalent", "Classification"}

type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Block is one element of the report. Exactly one of Text, Items or Table is
// meaningful, chosen by Type. Level applies to headers only.
type Block struct {
	Type  BlockType
	Key   string
	Level int
	Text  string
	Items []string
	Table *Table
}

type blockJSON struct {
	Type    BlockType       `json:"type"`
	Key     string          `json:"key"`
	Level   int             `json:"level,omitempty"`
	Content json.RawMessage `json:"content"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	var content any
	switch b.Type {
	case BlockHeader, BlockParagraph:
		content = b.Text
	case BlockBulletPoints:
		items := b.Items
		if items == nil {
			items = []string{}
		}
		content = items
	case BlockTable:
		content = b.Table
	default:
		return nil, fmt.Errorf("block %q: unknown type %q", b.Key, b.Type)
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	level := 0
	if b.Type == BlockHeader {
		level = b.Level
	}
	return json.Marshal(blockJSON{Type: b.Type, Key: b.Key, Level: level, Content: raw})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var wire blockJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*b = Block{Type: wire.Type, Key: wire.Key, Level: wire.Level}
	switch wire.Type {
	case BlockHeader, BlockParagraph:
		return json.Unmarshal(wire.Content, &b.Text)
	case BlockBulletPoints:
		return json.Unmarshal(wire.Content, &b.Items)
	case BlockTable:
		b.Table = &Table{}
		return json.Unmarshal(wire.Content, b.Table)
	}
	return fmt.Errorf("block %q: unknown type %q", wire.Key, wire.Type)
}

type Document struct {
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

// Find returns the first block with the given key.
func (d Document) Find(key string) (Block, bool) {
	for _, b := range d.Blocks {
		if b.Key == key {
			return b, true
		}
	}
	return Block{}, false
}

// Keys lists block keys in document order.
func (d Document) Keys() []string {
	out := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.Key
	}
	return out
}
