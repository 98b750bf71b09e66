package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "papercheck",
	Short: "Exam paper analysis with a multimodal oracle",
	Long: `Papercheck turns scanned exam papers into structured question records.

The pipeline includes:
  - Paper classification (blank, answered, graded)
  - Grading mark detection with cross-validation against the analysis
  - Difficulty, item type and topic for every question
  - Correctness and earned points, resolved from marks where possible
  - A content cache so identical papers are analyzed once`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.papercheck/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "papercheck home directory (default: ~/.papercheck)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
