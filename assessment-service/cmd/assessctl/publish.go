package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Krimson/neuro-risk/assessment-service/config"
	"github.com/Krimson/neuro-risk/assessment-service/internal/bootstrap"
	"github.com/Krimson/neuro-risk/assessment-service/internal/classifier"
	"github.com/Krimson/neuro-risk/assessment-service/internal/repository"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

func publishCmd() *cobra.Command {
	var (
		modality string
		file     string
		version  string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate an artifact and store it in the Postgres registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if err := checkArtifact(models.Modality(modality), data); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := repository.NewPostgresArtifactStore(cfg.PostgresDSN, "")
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveArtifact(cmd.Context(), models.Modality(modality), version, data); err != nil {
				return err
			}
			colorGreen.Printf("Published %s artifact %q\n", modality, version)
			return nil
		},
	}

	cmd.Flags().StringVar(&modality, "modality", "", "spiral or mri")
	cmd.Flags().StringVar(&file, "file", "", "artifact JSON file")
	cmd.Flags().StringVar(&version, "version", "", "artifact version")
	cmd.MarkFlagRequired("modality")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("version")

	return cmd
}

// checkArtifact отклоняет артефакты, которые сервис не загрузит
func checkArtifact(modality models.Modality, data []byte) error {
	method, ok := bootstrap.Methods[modality]
	if !ok {
		return fmt.Errorf("unknown modality %q", modality)
	}

	model, err := classifier.ParseArtifact(data)
	if err != nil {
		return err
	}
	if model.Method() != method {
		return fmt.Errorf("%s artifact uses %q features, expected %q", modality, model.Method(), method)
	}
	return nil
}
