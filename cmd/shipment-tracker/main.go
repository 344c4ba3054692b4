// cmd/shipment-tracker/main.go
package main

import (
	"context"

	"agrinexus/internal/pkg/bootstrap"
	"agrinexus/internal/pkg/database"
	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/service/delivery/application"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/infrastructure"
	"agrinexus/internal/service/delivery/interfaces"
)

const (
	serviceName     = "shipment-tracker"
	consumerGroupID = "shipment-tracker-group"
)

// 承运商物流推送的消费端：只消费 Kafka，HTTP 端口仅用于 /healthz 和 /metrics。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8082,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	brokers := cfg.Infra.Kafka.BrokerList()

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

	tracking := application.NewTrackingService(
		infrastructure.NewGormRequestRepository(db),
		infrastructure.NewGormShipmentRepository(db),
		appCtx.Tracer,
	)

	// 处理失败的消息转入死信主题
	topic := domain.TopicShipmentTrackingUpdates
	dltWriter := mq.NewKafkaWriter(brokers, mq.DLTTopic(topic))
	appCtx.OnShutdown(func(context.Context) error { return dltWriter.Close() })

	updates := mq.NewConsumerAdapter(
		"shipment-updates",
		mq.NewKafkaReader(brokers, topic, consumerGroupID),
		interfaces.NewShipmentUpdateHandler(tracking),
		mq.NewFailureHandler(dltWriter),
	)
	appCtx.AddWorker(updates.Run)

	// 死信只落日志，供人工排查
	deadLetters := mq.NewConsumerAdapter(
		"shipment-updates-dlt",
		mq.NewKafkaReader(brokers, mq.DLTTopic(topic), consumerGroupID+"-dlt"),
		mq.LogDeadLetter,
		nil,
	)
	appCtx.AddWorker(deadLetters.Run)
	return nil
}
