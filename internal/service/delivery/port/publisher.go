package port

import (
	"context"

	"agrinexus/internal/service/delivery/domain"
)

// EventPublisher 发布配送请求领域事件
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.DeliveryRequestEvent) error
}
