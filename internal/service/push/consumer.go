package push

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/service/delivery/domain"
)

// InvalidationFrame 通知客户端重新拉取配送请求列表
type InvalidationFrame struct {
	Type      string        `json:"type"`
	Key       string        `json:"key"`
	RequestID string        `json:"request_id"`
	Status    domain.Status `json:"status"`
}

// ConsumerGroup 每个网关节点独立消费全部事件，nodeID 本身就带有服务前缀
func ConsumerGroup(nodeID string) string {
	return nodeID + "-events"
}

// NewEventHandler 把配送事件转成失效通知，发给本节点上连接着的买家和卖家
func NewEventHandler(hub *Hub) mq.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt domain.DeliveryRequestEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return errors.Wrap(err, "decode delivery request event")
		}
		frame, err := json.Marshal(InvalidationFrame{
			Type:      "invalidate",
			Key:       "delivery-requests",
			RequestID: evt.RequestID,
			Status:    evt.NewStatus,
		})
		if err != nil {
			return errors.Wrap(err, "encode invalidation frame")
		}

		delivered := 0
		for _, user := range []string{evt.BuyerID, evt.SellerID} {
			if user != "" {
				delivered += hub.SendToUser(user, frame)
			}
		}
		logger.Ctx(ctx).Debug().
			Str("delivery_request_id", evt.RequestID).
			Int("connections", delivered).
			Msg("invalidation pushed")
		return nil
	}
}
