// Package main provides airwaycastctl, the operator CLI for the prediction
// pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/airwaycast/airwaycast/internal/app"
	"github.com/airwaycast/airwaycast/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

var (
	cfg        *config.Config
	log        zerolog.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "airwaycastctl",
	Short:         "Operate the Airwaycast prediction pipeline",
	Long:          "Runs forecasts, schema migrations and environment backfills against the configured database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		log = app.NewLogger(cfg, "airwaycastctl", Version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
