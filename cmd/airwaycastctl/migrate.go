package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airwaycast/airwaycast/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long:  "Applies all pending embedded SQL migrations in lexicographic order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := database.Connect(ctx, cfg.Database.Connection())
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		applied, err := database.Migrate(ctx, pool, log)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
