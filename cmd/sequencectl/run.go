package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"whatsapp-sequencer/internal/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(processCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		db, err := database.Open(env.cfg, env.entry("database"))
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Process every due subscription once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		service, err := env.service()
		if err != nil {
			return err
		}
		defer service.Close(context.Background())

		report, err := service.Scheduler.RunTick(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

var processCmd = &cobra.Command{
	Use:   "process <subscription-id>",
	Short: "Run one subscription now, ignoring its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		service, err := env.service()
		if err != nil {
			return err
		}
		defer service.Close(context.Background())

		outcome, err := service.Scheduler.ProcessOne(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("process %s: %w", args[0], err)
		}
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"id":      args[0],
			"outcome": outcome,
		})
	},
}
