package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scrapweigh/internal/device"
	"scrapweigh/internal/estimator"
	"scrapweigh/internal/imageio"
	"scrapweigh/internal/material"
)

func newEstimateCommand(app *appContext) *cobra.Command {
	var materialName string
	var manualEstimate float64
	var groundTruth float64

	cmd := &cobra.Command{
		Use:   "estimate <image>",
		Short: "Estimate the weight of a scrap piece from a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := material.Parse(materialName)
			if err != nil {
				return err
			}

			img, err := imageio.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}

			svc, err := estimator.New(app.cfg, device.Probe(), app.log)
			if err != nil {
				return err
			}
			defer svc.Close()

			var opts estimator.PredictOptions
			if cmd.Flags().Changed("manual-estimate") {
				opts.ManualEstimate = &manualEstimate
			}
			if cmd.Flags().Changed("ground-truth") {
				opts.GroundTruth = &groundTruth
			}

			res, err := svc.PredictWeight(cmd.Context(), img, m, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&materialName, "material", "m", "", "Material type (steel, aluminum, copper, brass)")
	cmd.Flags().Float64Var(&manualEstimate, "manual-estimate", 0, "Blend in a manual weight estimate in pounds")
	cmd.Flags().Float64Var(&groundTruth, "ground-truth", 0, "Record the scale-measured weight in pounds for learning")
	cmd.MarkFlagRequired("material")

	return cmd
}
