package main

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/joelkehle/otreport/internal/analysis"
	"github.com/joelkehle/otreport/internal/extract"
)

func extractCmd(a *app) *cobra.Command {
	var (
		in          inputFlags
		withAnalyze bool
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the scores and fragments extracted from instrument documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := in.request(cmd, a)
			if err != nil {
				return err
			}
			ex := extract.NewExtractor(a.log)
			raws := map[extract.Instrument]extract.InstrumentRaw{}
			for inst, text := range req.Texts {
				raws[inst] = ex.Extract(inst, text)
			}
			var payload any = raws
			if withAnalyze {
				payload = struct {
					Raw      map[extract.Instrument]extract.InstrumentRaw `json:"raw"`
					Analysis analysis.Analysis                            `json:"analysis"`
				}{raws, analysis.NewAnalyzer(zerolog.Nop()).Analyze(raws)}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&withAnalyze, "analyze", false, "Include score classification and findings")
	return cmd
}
