package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agrinexus/internal/pkg/database"
	deliveryinfra "agrinexus/internal/service/delivery/infrastructure"
	marketinfra "agrinexus/internal/service/market/infrastructure"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the marketplace tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(database.Options{DSN: cfg.Infra.MySQL.DSN})
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		models := append(marketinfra.Models(), deliveryinfra.Models()...)
		if err := database.Migrate(cmd.Context(), db, models...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(models))
		return nil
	},
}
