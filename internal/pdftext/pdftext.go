// Package pdftext decodes uploaded assessment documents into plain text for
// score extraction.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/joelkehle/otreport/internal/config"
)

const (
	defaultMaxBytes = 20 * 1024 * 1024
	maxTextRun      = 60000
	minPrintableRun = 24
)

const (
	MethodPlainText    = "plain-text"
	MethodPageText     = "page-text"
	MethodPdfToText    = "pdftotext"
	MethodByteFallback = "byte-fallback"
)

var ErrNoText = errors.New("no extractable text found")

type Result struct {
	Text      string `json:"-"`
	Method    string `json:"method"`
	Pages     int    `json:"pages,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

type Decoder struct {
	maxBytes int64
	log      zerolog.Logger
}

func NewDecoder(cfg config.ExtractionConfig, log zerolog.Logger) *Decoder {
	maxBytes := int64(cfg.MaxFileSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Decoder{maxBytes: maxBytes, log: log}
}

// Decode reads the file at path. Text files are returned as-is; PDFs try the
// embedded page text first, then pdftotext, then printable byte runs.
func (d *Decoder) Decode(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.Size() > d.maxBytes {
		return Result{}, fmt.Errorf("%s too large: %d bytes", path, info.Size())
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	if !bytes.HasPrefix(bytes.TrimLeft(blob, " \t\r\n"), []byte("%PDF")) {
		if !utf8.Valid(blob) {
			return Result{}, fmt.Errorf("%s: not a PDF or UTF-8 text file", path)
		}
		return truncateExtraction(string(blob), MethodPlainText, 0), nil
	}

	if text, pages, err := readPages(blob); err == nil && strings.TrimSpace(text) != "" {
		return truncateExtraction(text, MethodPageText, pages), nil
	} else if err != nil {
		d.log.Debug().Err(err).Str("path", path).Msg("pdf page text unavailable")
	}

	if text, err := runPdfToText(ctx, path); err == nil && strings.TrimSpace(text) != "" {
		return truncateExtraction(text, MethodPdfToText, 0), nil
	}

	fallback := extractPrintableText(blob)
	if strings.TrimSpace(fallback) == "" {
		return Result{}, fmt.Errorf("%s: %w", path, ErrNoText)
	}
	d.log.Warn().Str("path", path).Msg("pdf decoded from raw bytes; scores may be incomplete")
	return truncateExtraction(fallback, MethodByteFallback, 0), nil
}

// readPages recovers from panics inside the PDF parser on malformed input.
func readPages(blob []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", 0, err
	}
	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(content))
	}
	return b.String(), pages, nil
}

func runPdfToText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func extractPrintableText(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if len(s) >= minPrintableRun {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(strings.Join(runs, "\n"))
}

func truncateExtraction(text, method string, pages int) Result {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= maxTextRun {
		return Result{Text: trimmed, Method: method, Pages: pages}
	}
	prefix := trimmed[:maxTextRun]
	for !utf8.ValidString(prefix) {
		prefix = prefix[:len(prefix)-1]
	}
	return Result{
		Text:      prefix + "\n\n[TRUNCATED]",
		Method:    method,
		Pages:     pages,
		Truncated: true,
	}
}
