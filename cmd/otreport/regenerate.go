package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelkehle/otreport/internal/pipeline"
)

func regenerateCmd(a *app) *cobra.Command {
	var (
		sessionID string
		out       outputFlags
	)
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild a report from an archived session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.LoadRequest(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			req := pipeline.Request{SessionID: sess.ID, Patient: sess.Patient, Texts: sess.Texts}
			res, err := a.newPipeline(a.generator(), st).RunWithProgress(cmd.Context(), req, a.progress())
			if err != nil {
				return fmt.Errorf("%s stage failed: %w", pipeline.StageNameFromError(err), err)
			}
			fmt.Printf("session %s revision %d\n", res.Metadata.SessionID, res.Metadata.Revision)
			return out.write(cmd.Context(), a, res)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to regenerate")
	_ = cmd.MarkFlagRequired("session")
	out.register(cmd)
	return cmd
}
