package domain

import "time"

// EventType 配送请求事件类型
type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status_changed"
)

// TopicDeliveryRequestEvents 配送请求事件主题，按请求 ID 分区
const TopicDeliveryRequestEvents = "delivery-request-events"

// TopicShipmentTrackingUpdates 承运商物流推送主题
const TopicShipmentTrackingUpdates = "shipment-tracking-updates"

// DeliveryRequestEvent 是发布到 Kafka 的领域事件
type DeliveryRequestEvent struct {
	EventID      string    `json:"event_id"`
	Type         EventType `json:"type"`
	RequestID    string    `json:"request_id"`
	MarketCardID string    `json:"market_card_id"`
	BuyerID      string    `json:"buyer_id"`
	SellerID     string    `json:"seller_id"`
	OldStatus    Status    `json:"old_status,omitempty"`
	NewStatus    Status    `json:"new_status"`
	Note         string    `json:"note,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}
