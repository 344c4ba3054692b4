package interfaces

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/mq"
	"agrinexus/internal/service/delivery/application"
	"agrinexus/internal/service/delivery/domain"
)

// NewShipmentUpdateHandler 把 shipment-tracking-updates 的消息交给 TrackingService。
// 返回错误的消息由 ConsumerAdapter 转入死信主题。
func NewShipmentUpdateHandler(tracking *application.TrackingService) mq.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var u domain.ShipmentUpdate
		if err := json.Unmarshal(msg.Value, &u); err != nil {
			return apperr.Validationf("decode shipment update at offset %d: %v", msg.Offset, err)
		}
		if u.DeliveryRequestID == "" && len(msg.Key) > 0 {
			// 承运商可能只在 key 中携带请求 ID
			u.DeliveryRequestID = string(msg.Key)
		}
		result, err := tracking.Ingest(ctx, u)
		if err != nil {
			return err
		}
		logger.Ctx(ctx).Debug().
			Str("delivery_request_id", u.DeliveryRequestID).
			Str("result", string(result)).
			Int64("offset", msg.Offset).
			Msg("shipment update consumed")
		return nil
	}
}
