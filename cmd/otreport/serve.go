package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/otreport/internal/httpapi"
	"github.com/joelkehle/otreport/internal/pdftext"
	"github.com/joelkehle/otreport/internal/render"
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report upload API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := &http.Server{
				Addr: addr,
				Handler: httpapi.NewServer(httpapi.Options{
					Runner:      a.newPipeline(a.generator(), st),
					Archive:     st,
					Decoder:     pdftext.NewDecoder(a.cfg.Extraction, a.log),
					PDF:         render.NewPDFRenderer(a.cfg.Render),
					MaxUploadMB: a.cfg.Server.MaxUploadMB,
					Log:         a.log,
				}),
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      a.cfg.Server.WriteTimeout,
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.log.Info().Str("addr", addr).Str("store", a.cfg.Store.Path).Msg("otreport api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.log.Info().Msg("otreport api stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}
