// cmd/marketplace-service/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/pkg/bootstrap"
	"agrinexus/internal/pkg/database"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/pkg/redis"
	"agrinexus/internal/pkg/zookeeper"
	deliveryapp "agrinexus/internal/service/delivery/application"
	deliverydomain "agrinexus/internal/service/delivery/domain"
	deliveryinfra "agrinexus/internal/service/delivery/infrastructure"
	"agrinexus/internal/service/delivery/infrastructure/adapter"
	deliveryhttp "agrinexus/internal/service/delivery/interfaces"
	"agrinexus/internal/service/delivery/port"
	marketapp "agrinexus/internal/service/market/application"
	marketinfra "agrinexus/internal/service/market/infrastructure"
	markethttp "agrinexus/internal/service/market/interfaces"
)

const (
	serviceName = "marketplace-service"

	expireInterval = time.Hour
	zkGuardRoot    = "/agrinexus/delivery-guard"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8080,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	ctx := context.Background()

	// 1. 基础设施
	db, err := database.Open(database.Options{
		DSN:          cfg.Infra.MySQL.DSN,
		MaxOpenConns: cfg.Infra.MySQL.MaxOpenConns,
		MaxIdleConns: cfg.Infra.MySQL.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	appCtx.OnShutdown(func(context.Context) error { return sqlDB.Close() })

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		return err
	}
	appCtx.OnShutdown(func(context.Context) error { return redisClient.Close() })

	images, err := marketinfra.NewS3ImageStore(ctx, marketinfra.S3ImageStoreConfig{
		Bucket:        cfg.Infra.S3.Bucket,
		Region:        cfg.Infra.S3.Region,
		Endpoint:      cfg.Infra.S3.Endpoint,
		Prefix:        cfg.Infra.S3.Prefix,
		PublicBaseURL: cfg.Infra.S3.PublicBaseURL,
	})
	if err != nil {
		return err
	}

	// 2. 市场
	marketSvc, err := marketapp.NewMarketService(
		marketinfra.NewGormCardRepository(db),
		marketinfra.NewGormListingRepository(db),
		images,
		func() marketapp.Settings {
			c := bootstrap.GetCurrentConfig()
			return marketapp.Settings{
				MaxImageBytes:    c.Market.MaxImageBytes,
				EnableShareLinks: c.App.FeatureFlags.EnableShareLinks,
			}
		},
		appCtx.Tracer,
	)
	if err != nil {
		return err
	}

	// 3. 配送
	guard, err := newMutationGuard(appCtx, redisClient)
	if err != nil {
		return err
	}
	listCache, err := adapter.NewRedisRequestListCache(redisClient, cfg.Delivery.ListCacheTTL)
	if err != nil {
		return err
	}
	eventWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.BrokerList(), deliverydomain.TopicDeliveryRequestEvents)
	appCtx.OnShutdown(func(context.Context) error { return eventWriter.Close() })

	deliverySvc := deliveryapp.NewDeliveryService(deliveryapp.Deps{
		Requests:  deliveryinfra.NewGormRequestRepository(db),
		Shipments: deliveryinfra.NewGormShipmentRepository(db),
		Catalog:   adapter.NewMarketCatalogAdapter(marketSvc),
		Guard:     guard,
		Cache:     listCache,
		Publisher: adapter.NewKafkaEventPublisher(eventWriter),
		Settings: func() deliveryapp.Settings {
			return deliveryapp.Settings{
				EnableQuantityWarning: bootstrap.GetCurrentConfig().App.FeatureFlags.EnableQuantityWarning,
			}
		},
		Tracer: appCtx.Tracer,
	})

	// 4. 路由，全部需要登录
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	appCtx.Router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens))
		markethttp.NewMarketHandler(marketSvc, bootstrap.MaxUploadBytes).RegisterRoutes(r)
		deliveryhttp.NewHTTPHandler(deliverySvc).RegisterRoutes(r)
	})

	// 5. 后台任务
	appCtx.AddWorker(func(ctx context.Context) error {
		return expireListingsLoop(ctx, marketSvc)
	})
	return nil
}

// newMutationGuard 按 delivery.guard_backend 选择互斥实现。
func newMutationGuard(appCtx *bootstrap.AppCtx, redisClient *redis.Client) (port.MutationGuard, error) {
	cfg := appCtx.Config
	if cfg.Delivery.GuardBackend != "zookeeper" {
		return adapter.NewRedisMutationGuard(redisClient, cfg.Delivery.GuardTTL)
	}

	conn, err := zookeeper.Dial(cfg.Infra.Zookeeper.ServerList(), cfg.Infra.Zookeeper.SessionTimeout)
	if err != nil {
		return nil, err
	}
	appCtx.OnShutdown(func(context.Context) error {
		conn.Close()
		return nil
	})
	locker, err := zookeeper.NewLocker(conn, zkGuardRoot)
	if err != nil {
		return nil, err
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}
	return adapter.NewZookeeperMutationGuard(locker, host), nil
}

// expireListingsLoop 定期把超龄的在售挂牌标记为 expired。
func expireListingsLoop(ctx context.Context, svc *marketapp.MarketService) error {
	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		maxAge := bootstrap.GetCurrentConfig().Market.ListingMaxAge
		if maxAge <= 0 {
			continue
		}
		n, err := svc.ExpireListings(ctx, maxAge)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to expire listings")
			continue
		}
		if n > 0 {
			logger.Ctx(ctx).Info().Int64("expired", n).Msg("Expired stale listings")
		}
	}
}
