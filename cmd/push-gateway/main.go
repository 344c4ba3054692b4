// cmd/push-gateway/main.go
package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/pkg/bootstrap"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/pkg/redis"
	"agrinexus/internal/pkg/session"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/push"
)

const (
	serviceName = "push-gateway"
	// 客户端每次 pong 都会续期，超过这个时间没有心跳的会话自动失效
	sessionTTL = 90 * time.Second
)

var nodeID = "push-gateway-" + uuid.New().String()[:8]

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8088,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		return err
	}
	appCtx.OnShutdown(func(context.Context) error { return redisClient.Close() })

	sessions, err := session.NewManager(redisClient, nodeID, sessionTTL)
	if err != nil {
		return err
	}

	hub := push.NewHub()
	appCtx.AddWorker(hub.Run)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	push.NewGateway(hub, sessions, tokens).RegisterRoutes(appCtx.Router)

	// 每个节点独立的消费组，保证所有节点都能收到全部事件
	consumer := mq.NewConsumerAdapter(
		"delivery-events-push",
		mq.NewKafkaReader(cfg.Infra.Kafka.BrokerList(), domain.TopicDeliveryRequestEvents, push.ConsumerGroup(nodeID)),
		push.NewEventHandler(hub),
		nil,
	)
	appCtx.AddWorker(consumer.Run)

	logger.Ctx(context.Background()).Info().Str("node_id", nodeID).Msg("Push gateway node initialized")
	return nil
}
