package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Krimson/neuro-risk/assessment-service/config"
	"github.com/Krimson/neuro-risk/assessment-service/internal/bootstrap"
	"github.com/Krimson/neuro-risk/assessment-service/internal/imaging"
	"github.com/Krimson/neuro-risk/assessment-service/internal/service"
	"github.com/Krimson/neuro-risk/assessment-service/internal/symptoms"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

func assessCmd() *cobra.Command {
	var (
		spiralPath string
		mriPath    string
		answers    []string
		mode       string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run one screening and print the fused result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.ClassifierMode = mode
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			req := service.Request{}
			if req.Spiral, err = readSample(spiralPath); err != nil {
				return err
			}
			if mriPath != "" {
				if req.MRI, err = readSample(mriPath); err != nil {
					return err
				}
			}
			if req.Answers, err = parseAnswers(answers); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			app, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Service.Assess(ctx, req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&spiralPath, "spiral", "", "spiral drawing image (required)")
	cmd.Flags().StringVar(&mriPath, "mri", "", "MRI slice image")
	cmd.Flags().StringArrayVar(&answers, "answer", nil, "questionnaire answer as key=yes|no, repeatable")
	cmd.Flags().StringVar(&mode, "mode", "", "override CLASSIFIER_MODE (model, remote, mock, auto)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.MarkFlagRequired("spiral")

	return cmd
}

func questionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List the questionnaire keys",
		Run: func(cmd *cobra.Command, args []string) {
			for _, q := range symptoms.Questions {
				fmt.Fprintln(cmd.OutOrStdout(), q)
			}
		},
	}
}

func readSample(path string) (*models.ImageSample, error) {
	if !imaging.AllowedFile(path) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedImage, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &models.ImageSample{Filename: filepath.Base(path), Data: data}, nil
}

// parseAnswers превращает пары key=value в ответы анкеты
func parseAnswers(pairs []string) (map[string]string, error) {
	known := make(map[string]bool, len(symptoms.Questions))
	for _, q := range symptoms.Questions {
		known[q] = true
	}

	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("answer %q is not key=value", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !known[key] {
			return nil, fmt.Errorf("unknown question %q", key)
		}
		out[key] = strings.ToLower(strings.TrimSpace(value))
	}
	return out, nil
}

func riskColor(level models.RiskLevel) *color.Color {
	switch level.Class {
	case models.ClassDanger:
		return colorRed
	case models.ClassWarning:
		return colorYellow
	}
	return colorGreen
}

func printResult(r *models.FusionResult) {
	colorCyan.Printf("Assessment %s\n", r.AssessmentID)
	fmt.Println(strings.Repeat("-", 48))

	rows := []struct {
		name string
		row  models.ModalityResult
	}{
		{"spiral", r.Spiral},
		{"mri", r.MRI},
		{"symptoms", r.Symptoms},
	}
	for _, row := range rows {
		if !row.row.Available {
			colorFaint.Printf("%-10s %s\n", row.name, row.row.Result)
			continue
		}
		line := fmt.Sprintf("%-10s %-28s %.2f  (weight %.1f)", row.name, row.row.Result, row.row.Confidence, row.row.Weight)
		if row.row.Degraded {
			colorYellow.Println(line)
		} else {
			fmt.Println(line)
		}
	}

	fmt.Println(strings.Repeat("-", 48))
	fmt.Printf("combined probability %.2f\n", r.CombinedProbability)
	riskColor(r.RiskLevel).Printf("risk level           %s\n", r.RiskLevel.Level)
	if r.UrgentConsultation {
		colorRed.Println("urgent consultation recommended")
	}
}
