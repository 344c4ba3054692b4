// cmd/notification-service/main.go
package main

import (
	"context"

	"agrinexus/internal/pkg/bootstrap"
	"agrinexus/internal/pkg/httpclient"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/notification"
)

const serviceName = "notification-service"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8083,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config

	sender := notification.NewWebhookSender(httpclient.NewClient(appCtx.Tracer), cfg.Notification.WebhookURL)
	svc := notification.NewService(sender, cfg.Notification.RatePerSecond, cfg.Notification.Burst, appCtx.Tracer)

	// 限流参数支持热更新
	appCtx.OnReload(func(c *bootstrap.Config) {
		svc.SetRate(c.Notification.RatePerSecond, c.Notification.Burst)
		logger.Ctx(context.Background()).Info().
			Float64("rate_per_second", c.Notification.RatePerSecond).
			Int("burst", c.Notification.Burst).
			Msg("Notification rate limit reloaded")
	})

	consumer := mq.NewConsumerAdapter(
		"delivery-events",
		mq.NewKafkaReader(cfg.Infra.Kafka.BrokerList(), domain.TopicDeliveryRequestEvents, notification.ConsumerGroup),
		svc.HandleMessage,
		nil,
	)
	appCtx.AddWorker(consumer.Run)
	return nil
}
