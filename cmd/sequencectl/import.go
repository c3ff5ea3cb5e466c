package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whatsapp-sequencer/internal/database"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import-sqlite <path>",
	Short: "Copy every table from a SQLite file into the configured database",
	Long: "Copy accounts, contacts, templates, sequences, subscriptions and sent messages " +
		"from a SQLite file into the database named by DB_DRIVER. Rows that already exist are skipped.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("source database: %w", err)
		}
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		log := env.entry("import")

		src, err := gorm.Open(sqlite.Open(args[0]), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer closeDB(src)
		log.WithField("path", args[0]).Info("Connected to SQLite source")

		dst, err := database.Open(env.cfg, log)
		if err != nil {
			return err
		}
		defer closeDB(dst)
		if err := database.Migrate(dst); err != nil {
			return err
		}

		log.Info("Starting data migration...")
		results, err := database.CopyAll(cmd.Context(), src, dst, log)
		printResults(cmd, results)
		if err != nil {
			return err
		}
		log.Info("Migration completed!")
		return nil
	},
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func printResults(cmd *cobra.Command, results []database.CopyResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\n", r.Table, r.Rows)
	}
	_ = w.Flush()
}
