package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"agrinexus/internal/pkg/database"
	marketapp "agrinexus/internal/service/market/application"
	marketinfra "agrinexus/internal/service/market/infrastructure"
)

var expireMaxAge time.Duration

var expireListingsCmd = &cobra.Command{
	Use:   "expire-listings",
	Short: "Mark available listings older than --max-age as expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		maxAge := expireMaxAge
		if maxAge <= 0 {
			maxAge = cfg.Market.ListingMaxAge
		}
		if maxAge <= 0 {
			return fmt.Errorf("max age must be positive")
		}

		db, err := database.Open(database.Options{DSN: cfg.Infra.MySQL.DSN})
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		// 只用到挂牌仓储，图片存储不需要
		svc, err := marketapp.NewMarketService(
			marketinfra.NewGormCardRepository(db),
			marketinfra.NewGormListingRepository(db),
			nil,
			func() marketapp.Settings { return marketapp.Settings{MaxImageBytes: cfg.Market.MaxImageBytes} },
			otel.Tracer("marketctl"),
		)
		if err != nil {
			return err
		}
		n, err := svc.ExpireListings(cmd.Context(), maxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired %d listings\n", n)
		return nil
	},
}

func init() {
	expireListingsCmd.Flags().DurationVar(&expireMaxAge, "max-age", 0, "Listing age threshold (defaults to market.listing_max_age)")
}
