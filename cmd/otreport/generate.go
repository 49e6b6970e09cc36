package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/otreport/internal/extract"
	"github.com/joelkehle/otreport/internal/patient"
	"github.com/joelkehle/otreport/internal/pdftext"
	"github.com/joelkehle/otreport/internal/pipeline"
)

type inputFlags struct {
	files   map[extract.Instrument]*string
	patient patient.Input
}

func (f *inputFlags) register(cmd *cobra.Command) {
	f.files = map[extract.Instrument]*string{}
	for _, inst := range extract.Instruments {
		name := strings.ReplaceAll(string(inst), "_", "-")
		f.files[inst] = cmd.Flags().String(name, "", fmt.Sprintf("Path to %s document (PDF or text)", inst.Title()))
	}
	cmd.Flags().StringVar(&f.patient.Name, "name", "", "Patient name")
	cmd.Flags().StringVar(&f.patient.DateOfBirth, "dob", "", "Date of birth")
	cmd.Flags().StringVar(&f.patient.EncounterDate, "encounter-date", "", "Evaluation date")
	cmd.Flags().StringVar(&f.patient.ReportDate, "report-date", "", "Report date (defaults to today)")
	cmd.Flags().StringVar(&f.patient.Guardian, "guardian", "", "Parent or guardian name")
	cmd.Flags().StringVar(&f.patient.UCINumber, "uci", "", "UCI or record number")
	cmd.Flags().StringVar(&f.patient.Sex, "sex", "", "Sex")
	cmd.Flags().StringVar(&f.patient.Language, "language", "", "Primary language")
}

// request decodes every supplied file. A file that yields no text is kept
// as an empty input so the instrument is reported as not administered.
func (f *inputFlags) request(cmd *cobra.Command, a *app) (pipeline.Request, error) {
	dec := pdftext.NewDecoder(a.cfg.Extraction, a.log)
	req := pipeline.Request{Patient: f.patient, Texts: map[extract.Instrument]string{}}
	for _, inst := range extract.Instruments {
		path := strings.TrimSpace(*f.files[inst])
		if path == "" {
			continue
		}
		res, err := dec.Decode(cmd.Context(), path)
		switch {
		case err == nil:
		case isNoText(err):
			a.log.Warn().Str("instrument", string(inst)).Str("path", path).Msg("no text extracted")
		default:
			return req, fmt.Errorf("%s: %w", inst, err)
		}
		a.log.Debug().Str("instrument", string(inst)).Str("method", res.Method).Int("pages", res.Pages).Bool("truncated", res.Truncated).Msg("document decoded")
		req.Texts[inst] = res.Text
	}
	if len(req.Texts) == 0 {
		return req, fmt.Errorf("no instrument files given; use --%s, --cognitive, ... to supply at least one", extract.Facesheet)
	}
	return req, nil
}

func generateCmd(a *app) *cobra.Command {
	var (
		in      inputFlags
		out     outputFlags
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a report from instrument documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := in.request(cmd, a)
			if err != nil {
				return err
			}
			var archive pipeline.Archive
			if !noStore {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				archive = st
			}
			res, err := a.newPipeline(a.generator(), archive).RunWithProgress(cmd.Context(), req, a.progress())
			if err != nil {
				return fmt.Errorf("%s stage failed: %w", pipeline.StageNameFromError(err), err)
			}
			fmt.Fprintf(os.Stdout, "session %s (%d fallback sections)\n", res.Metadata.SessionID, res.Metadata.FallbackSections)
			return out.write(cmd.Context(), a, res)
		},
	}
	in.register(cmd)
	out.register(cmd)
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not archive the request and document")
	return cmd
}
