package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"comanda/internal/config"
	"comanda/internal/infrastructure/logger"
	"comanda/internal/infrastructure/mysql"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	Long: `Create every table the services need. Existing tables are left
untouched, so the command is safe to run on each deploy.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	zapLogger, err := logger.New(cfg.Log.Level, "migrate")
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := mysql.Migrate(ctx, db); err != nil {
		return err
	}
	zapLogger.Info("schema up to date")
	return nil
}
