package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/otreport/internal/pdftext"
	"github.com/joelkehle/otreport/internal/pipeline"
	"github.com/joelkehle/otreport/internal/render"
)

var knownFormats = map[string]bool{"md": true, "json": true, "pdf": true, "xlsx": true}

type outputFlags struct {
	dir     string
	formats []string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.dir, "out-dir", ".", "Directory for rendered reports")
	cmd.Flags().StringSliceVar(&o.formats, "format", []string{"md", "json"}, "Output formats: md, json, pdf, xlsx")
}

// write renders the document once per requested format. Files are named
// after the session so regenerations do not overwrite other sessions.
func (o *outputFlags) write(ctx context.Context, a *app, res pipeline.Result) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(o.dir, "ot-report-"+shortID(res.Metadata.SessionID))
	for _, f := range o.formats {
		format := strings.ToLower(strings.TrimSpace(f))
		if !knownFormats[format] {
			return fmt.Errorf("unknown format %q", f)
		}
		var (
			data []byte
			err  error
		)
		switch format {
		case "md":
			data = []byte(render.Markdown(res.Document))
		case "json":
			data, err = json.MarshalIndent(res.Document, "", "  ")
		case "pdf":
			data, err = render.NewPDFRenderer(a.cfg.Render).Render(ctx, res.Document)
		case "xlsx":
			data, err = render.ScoreWorkbook(res.Document)
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
		path := base + "." + format
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		a.log.Info().Str("format", format).Str("path", path).Int("bytes", len(data)).Msg("report written")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func isNoText(err error) bool { return errors.Is(err, pdftext.ErrNoText) }
