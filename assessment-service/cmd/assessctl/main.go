// Command assessctl runs screenings and manages model artifacts from the shell.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorCyan   = color.New(color.FgCyan)
	colorFaint  = color.New(color.Faint)
)

var rootCmd = &cobra.Command{
	Use:   "assessctl",
	Short: "Movement-disorder risk screening from the command line",
	Long: `assessctl runs the assessment pipeline in-process and manages the
model artifacts it loads. Settings come from the same environment variables
as the server (CLASSIFIER_MODE, MODEL_DIR, ARTIFACT_SOURCE, POSTGRES_DSN, ...).

Examples:
  # Screen a drawing with two positive answers
  assessctl assess --spiral spiral.png --answer tremor=yes --answer slowness=yes

  # List the questionnaire keys
  assessctl questions

  # Write synthetic drawings to try the pipeline with
  assessctl sample --dir ./samples --seed 7

  # Publish a trained artifact to the Postgres registry
  assessctl publish --modality spiral --file spiral.json --version 2024-05-01
`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(assessCmd(), questionsCmd(), publishCmd(), sampleCmd())

	if err := rootCmd.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
