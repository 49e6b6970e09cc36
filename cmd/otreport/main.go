package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/logging"
	"github.com/joelkehle/otreport/internal/narrative"
	"github.com/joelkehle/otreport/internal/pipeline"
	"github.com/joelkehle/otreport/internal/store"
	"github.com/joelkehle/otreport/internal/telemetry"
)

type app struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
	shutdown   telemetry.ShutdownFunc
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "otreport",
		Short:         "Generate pediatric occupational therapy evaluation reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.Background())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to YAML config file (env OTREPORT_* overrides)")

	root.AddCommand(generateCmd(a))
	root.AddCommand(regenerateCmd(a))
	root.AddCommand(extractCmd(a))
	root.AddCommand(sessionsCmd(a))
	root.AddCommand(serveCmd(a))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "otreport: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Log, os.Stderr)
	a.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		a.log.Warn().Err(err).Msg("tracing disabled")
	}
	return nil
}

// generator returns nil when generation is off or unavailable so every
// section falls back to deterministic text.
func (a *app) generator() narrative.Generator {
	if !a.cfg.Generation.Enabled {
		return nil
	}
	gen, err := narrative.NewAnthropicGeneratorFromEnv(a.cfg.Generation.Model, a.cfg.Generation.Temperature)
	if err != nil {
		if !errors.Is(err, narrative.ErrGenerationDisabled) {
			a.log.Warn().Err(err).Msg("narrative generation unavailable, using fallback text")
		}
		return nil
	}
	return gen
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(a.cfg.Store.Path)
}

func (a *app) newPipeline(gen narrative.Generator, archive pipeline.Archive) *pipeline.Pipeline {
	var opts []pipeline.Option
	if archive != nil {
		opts = append(opts, pipeline.WithArchive(archive))
	}
	return pipeline.New(a.cfg, gen, a.log, opts...)
}

func (a *app) progress() pipeline.StageProgressFn {
	return func(stage, message string) {
		a.log.Info().Str("stage", stage).Msg(message)
	}
}
