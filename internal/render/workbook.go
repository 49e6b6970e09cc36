package render

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/otreport/internal/report"
)

const maxSheetName = 31

// ScoreWorkbook writes every table in the document to its own sheet, in
// document order. Tables without columns are skipped.
func ScoreWorkbook(doc report.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F1F5F9"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	used := map[string]bool{}
	sheets := 0
	for _, blk := range doc.Blocks {
		if blk.Type != report.BlockTable || blk.Table == nil || len(blk.Table.Columns) == 0 {
			continue
		}
		sheet := sheetName(blk.Key, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("xlsx sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, blk.Table, headerStyle); err != nil {
			return nil, err
		}
		sheets++
	}
	if sheets == 0 {
		return nil, fmt.Errorf("xlsx: document has no tables")
	}
	// NewFile always creates Sheet1; drop it once real sheets exist.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheetName(firstTableKey(doc), map[string]bool{})); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, t *report.Table, headerStyle int) error {
	for i, h := range t.Columns {
		if err := setCell(f, sheet, i+1, 1, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err != nil {
		return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("xlsx header style: %w", err)
	}
	for r, row := range t.Rows {
		for c, v := range row {
			if err := setCell(f, sheet, c+1, r+2, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
	}
	if len(t.Columns) > 1 {
		lastCol, err := excelize.ColumnNumberToName(len(t.Columns))
		if err != nil {
			return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
		}
		if err := f.SetColWidth(sheet, "B", lastCol, 18); err != nil {
			return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("xlsx cell %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func firstTableKey(doc report.Document) string {
	for _, blk := range doc.Blocks {
		if blk.Type == report.BlockTable {
			return blk.Key
		}
	}
	return ""
}

// sheetName derives a unique Excel-safe name from a block key.
func sheetName(key string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, key)
	if name == "" {
		name = "table"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	base, n := name, 2
	for used[strings.ToLower(name)] || strings.EqualFold(name, "Sheet1") {
		suffix := fmt.Sprintf("_%d", n)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		name = base + suffix
		n++
	}
	used[strings.ToLower(name)] = true
	return name
}
