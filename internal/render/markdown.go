// Package render turns an assembled report document into Markdown, PDF and
// XLSX outputs.
package render

import (
	"fmt"
	"strings"

	"github.com/joelkehle/otreport/internal/report"
)

// Markdown renders the document as GitHub-flavored Markdown.
func Markdown(doc report.Document) string {
	var b strings.Builder
	for _, blk := range doc.Blocks {
		switch blk.Type {
		case report.BlockHeader:
			level := blk.Level
			if level < 1 {
				level = 2
			}
			if level > 6 {
				level = 6
			}
			fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", level), sanitizeLine(blk.Text))
		case report.BlockParagraph:
			b.WriteString(hardBreaks(blk.Text))
			b.WriteString("\n\n")
		case report.BlockBulletPoints:
			for _, item := range blk.Items {
				fmt.Fprintf(&b, "- %s\n", sanitizeLine(item))
			}
			b.WriteString("\n")
		case report.BlockTable:
			writeTable(&b, blk.Table)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeTable(b *strings.Builder, t *report.Table) {
	if t == nil || len(t.Columns) == 0 {
		return
	}
	cells := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cells[i] = tableCell(c)
	}
	fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	fmt.Fprintf(b, "|%s\n", strings.Repeat(" --- |", len(t.Columns)))
	for _, row := range t.Rows {
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = tableCell(row[i])
			}
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func tableCell(s string) string {
	return strings.ReplaceAll(sanitizeLine(s), "|", `\|`)
}

// hardBreaks keeps single line breaks visible in rendered Markdown.
func hardBreaks(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "  \n")
}

func sanitizeLine(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if s == "" {
		return "-"
	}
	return s
}
