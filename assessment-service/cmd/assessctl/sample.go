package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Krimson/neuro-risk/assessment-service/internal/synth"
)

func sampleCmd() *cobra.Command {
	var (
		dir    string
		seed   int64
		tremor float64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write synthetic healthy and tremor spiral drawings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			shaky := synth.Tremor
			if cmd.Flags().Changed("tremor") {
				shaky.Tremor = tremor
			}

			gen := synth.NewSpiralGenerator(seed)
			for name, cfg := range map[string]synth.SpiralConfig{
				"healthy_spiral.png": synth.Healthy,
				"patient_spiral.png": shaky,
			} {
				data, err := gen.DrawPNG(cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				path := filepath.Join(dir, name)
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return err
				}
				colorGreen.Printf("Wrote %s\n", path)
			}

			colorFaint.Printf("max jitter %.2f px\n", gen.GetStats().MaxJitter)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 for time-based")
	cmd.Flags().Float64Var(&tremor, "tremor", 0, "override the tremor amplitude in pixels")

	return cmd
}
