package report

import (
	"fmt"
	"strings"
)

// InvariantError reports a structurally invalid document. It is the only
// error Assemble returns.
type InvariantError struct {
	Key    string
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Key == "" {
		return "report invariant violated: " + e.Reason
	}
	return fmt.Sprintf("report invariant violated at %q: %s", e.Key, e.Reason)
}

func violation(key, format string, args ...any) *InvariantError {
	return &InvariantError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural rules every rendered document relies on.
func Validate(doc Document) error {
	if len(doc.Blocks) == 0 {
		return violation("", "document has no blocks")
	}
	if doc.Blocks[0].Type != BlockHeader {
		return violation(doc.Blocks[0].Key, "document must open with a header")
	}
	seen := make(map[string]bool, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if strings.TrimSpace(b.Key) == "" {
			return violation("", "block of type %s has no key", b.Type)
		}
		if seen[b.Key] {
			return violation(b.Key, "duplicate block key")
		}
		seen[b.Key] = true
		if err := validateBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func validateBlock(b Block) error {
	switch b.Type {
	case BlockHeader, BlockParagraph:
		if strings.TrimSpace(b.Text) == "" {
			return violation(b.Key, "%s has no text", b.Type)
		}
	case BlockBulletPoints:
		if len(b.Items) == 0 {
			return violation(b.Key, "bullet list is empty")
		}
	case BlockTable:
		return validateTable(b)
	default:
		return violation(b.Key, "unknown block type %q", b.Type)
	}
	return nil
}

func validateTable(b Block) error {
	if b.Table == nil || len(b.Table.Columns) == 0 {
		return violation(b.Key, "table has no columns")
	}
	if isResultTable(b.Key) && len(b.Table.Columns) != len(ResultColumns) {
		return violation(b.Key, "result table has %d columns, want %d", len(b.Table.Columns), len(ResultColumns))
	}
	for i, row := range b.Table.Rows {
		if len(row) != len(b.Table.Columns) {
			return violation(b.Key, "row %d has %d cells, want %d", i, len(row), len(b.Table.Columns))
		}
		for j, cell := range row {
			if strings.TrimSpace(cell) == "" {
				return violation(b.Key, "row %d column %q is empty", i, b.Table.Columns[j])
			}
		}
	}
	return nil
}

func isResultTable(key string) bool {
	for _, inst := range resultOrder {
		if key == scoresKey(inst) || key == compositesKey(inst) {
			return true
		}
	}
	return false
}
