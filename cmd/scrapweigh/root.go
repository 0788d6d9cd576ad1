package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"scrapweigh/internal/config"
	"scrapweigh/internal/version"
)

type appContext struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCommand() *cobra.Command {
	app := &appContext{}
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "scrapweigh",
		Short: "Estimate scrap metal weight from photos",
		Long: `Scrapweigh estimates the weight of scrap metal pieces from photos
using an ensemble of on-device vision backends. It runs fully offline
and always produces an estimate, degrading to simpler heuristics when
the full ensemble is unavailable.`,
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app.cfg = cfg

			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			app.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newEstimateCommand(app))
	cmd.AddCommand(newServeCommand(app))
	cmd.AddCommand(newWeightsCommand(app))

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}
