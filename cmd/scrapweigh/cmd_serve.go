package main

import (
	"github.com/spf13/cobra"

	"scrapweigh/internal/device"
	"scrapweigh/internal/estimator"
	"scrapweigh/internal/server"
)

func newServeCommand(app *appContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP estimation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := device.Probe()
			app.log.Info().
				Str("tier", caps.Tier.String()).
				Bool("gpu", caps.GPUSupported).
				Msg("probed device capabilities")

			svc, err := estimator.New(app.cfg, caps, app.log)
			if err != nil {
				return err
			}
			defer svc.Close()

			if addr == "" {
				addr = app.cfg.ListenAddr
			}
			return server.New(svc, app.log).ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}
