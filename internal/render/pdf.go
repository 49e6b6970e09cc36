package render

import (
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/report"
)

//go:embed style.css
var styleCSS string

const defaultRenderTimeout = 30 * time.Second

// PDFRenderer prints the Markdown rendering of a document through headless
// Chromium.
type PDFRenderer struct {
	chromePath string
	timeout    time.Duration
}

func NewPDFRenderer(cfg config.RenderConfig) *PDFRenderer {
	path := strings.TrimSpace(cfg.ChromePath)
	if path == "" {
		path = detectChromePath()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &PDFRenderer{chromePath: path, timeout: timeout}
}

func (r *PDFRenderer) Render(ctx context.Context, doc report.Document) ([]byte, error) {
	htmlDoc, err := BuildHTML(doc)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// BuildHTML converts the Markdown rendering to a standalone HTML page.
func BuildHTML(doc report.Document) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(doc)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := doc.Title
	if title == "" {
		title = "Evaluation Report"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + styleCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}" +
		"</style></head><body><main class='report'>" +
		"<div class='report-meta'>" + buildMetaHTML(doc) + "</div>" +
		applyPrintLayoutHooks(content.String()) +
		"</main></body></html>", nil
}

var (
	reSignatureHeading = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Signature\s*</h2>`)
	reTableOpen        = regexp.MustCompile(`<table>`)
)

// applyPrintLayoutHooks starts the signature on its own page and keeps score
// tables from splitting across pages.
func applyPrintLayoutHooks(contentHTML string) string {
	out := reSignatureHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Signature</h2>`)
	return reTableOpen.ReplaceAllString(out, `<table data-keep-together="true">`)
}

func buildMetaHTML(doc report.Document) string {
	var out strings.Builder
	demo, ok := doc.Find("demographics")
	if !ok || demo.Table == nil {
		return ""
	}
	for _, row := range demo.Table.Rows {
		if len(row) != 2 || row[1] == report.NotAvailable {
			continue
		}
		switch row[0] {
		case "Name", "Date of Birth", "Report Date":
			out.WriteString("<div><strong>" + html.EscapeString(row[0]) + ":</strong> " + html.EscapeString(row[1]) + "</div>")
		}
	}
	return out.String()
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
