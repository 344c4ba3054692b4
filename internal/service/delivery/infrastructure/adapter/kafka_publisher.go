package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/service/delivery/domain"
)

// HeaderEventType 消费方可以不解码消息体就按类型过滤
const HeaderEventType = "event-type"

// KafkaEventPublisher 实现了 port.EventPublisher 接口。
type KafkaEventPublisher struct {
	writer mq.MessageWriter
}

// NewKafkaEventPublisher writer 应指向 delivery-request-events 主题
func NewKafkaEventPublisher(writer mq.MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// Publish 以请求 ID 为 key，同一请求的事件进入同一分区，保持顺序。
func (a *KafkaEventPublisher) Publish(ctx context.Context, evt domain.DeliveryRequestEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshal delivery request event")
	}
	err = mq.ProduceMessage(ctx, a.writer, []byte(evt.RequestID), body,
		kafka.Header{Key: HeaderEventType, Value: []byte(evt.Type)})
	if err != nil {
		return errors.Wrapf(err, "publish %s event for request %s", evt.Type, evt.RequestID)
	}
	return nil
}
