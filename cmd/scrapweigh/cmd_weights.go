package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"scrapweigh/internal/device"
	"scrapweigh/internal/estimator"
)

func newWeightsCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "weights",
		Short: "Show the current learned ensemble weights and backend metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := estimator.New(app.cfg, device.Probe(), app.log)
			if err != nil {
				return err
			}
			defer svc.Close()

			weights, metrics, err := svc.Weights()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"weights": weights,
				"metrics": metrics,
			})
		},
	}
}
