package domain

import (
	"strings"
	"time"

	"agrinexus/internal/pkg/apperr"
)

// ShipmentStatus 承运商上报的物流状态
type ShipmentStatus string

const (
	ShipmentCreated        ShipmentStatus = "created"
	ShipmentPickedUp       ShipmentStatus = "picked_up"
	ShipmentInTransit      ShipmentStatus = "in_transit"
	ShipmentOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentDelivered      ShipmentStatus = "delivered"
	ShipmentFailed         ShipmentStatus = "failed"
)

// rank 定义了单调推进的顺序，failed 单独处理
var rank = map[ShipmentStatus]int{
	ShipmentCreated:        1,
	ShipmentPickedUp:       2,
	ShipmentInTransit:      3,
	ShipmentOutForDelivery: 4,
	ShipmentDelivered:      5,
}

func (s ShipmentStatus) IsValid() bool {
	_, ok := rank[s]
	return ok || s == ShipmentFailed
}

func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentDelivered || s == ShipmentFailed
}

// DeliveryShipment 与配送请求一对一，只由承运商的推送创建和更新
type DeliveryShipment struct {
	ID                string
	DeliveryRequestID string
	Status            ShipmentStatus
	LastKnownLocation string
	Carrier           string
	TrackingNumber    string
	UpdatedAt         time.Time
}

// ShipmentUpdate 是承运商推送到 shipment-tracking-updates 的消息
type ShipmentUpdate struct {
	DeliveryRequestID string         `json:"delivery_request_id"`
	Carrier           string         `json:"carrier"`
	TrackingNumber    string         `json:"tracking_number"`
	Status            ShipmentStatus `json:"status"`
	Location          string         `json:"location"`
	OccurredAt        time.Time      `json:"occurred_at"`
}

func (u ShipmentUpdate) Validate() error {
	if strings.TrimSpace(u.DeliveryRequestID) == "" {
		return apperr.Validation("delivery_request_id is required")
	}
	if !u.Status.IsValid() {
		return apperr.Validationf("unknown shipment status %q", u.Status)
	}
	return nil
}

// UpdateResult 描述一次推送的处理结果
type UpdateResult string

const (
	UpdateCreated UpdateResult = "created"
	UpdateApplied UpdateResult = "applied"
	UpdateIgnored UpdateResult = "ignored"
)

// Advance 按单调规则应用更新：只能前进；failed 可以从任何非终态进入；终态之后全部忽略。
// 乱序到达的旧消息被忽略而不是报错。
func (s *DeliveryShipment) Advance(u ShipmentUpdate, now time.Time) UpdateResult {
	if s.Status.IsTerminal() {
		return UpdateIgnored
	}
	if u.Status != ShipmentFailed && rank[u.Status] <= rank[s.Status] {
		// 同一状态可能只带来位置变化
		if u.Status == s.Status && u.Location != "" && u.Location != s.LastKnownLocation {
			s.LastKnownLocation = u.Location
			s.UpdatedAt = now
			return UpdateApplied
		}
		return UpdateIgnored
	}
	s.Status = u.Status
	if u.Location != "" {
		s.LastKnownLocation = u.Location
	}
	if u.Carrier != "" {
		s.Carrier = u.Carrier
	}
	if u.TrackingNumber != "" {
		s.TrackingNumber = u.TrackingNumber
	}
	s.UpdatedAt = now
	return UpdateApplied
}

// CanShip 只有 accepted / completed 的请求才能有物流记录
func CanShip(s Status) bool {
	return s == StatusAccepted || s == StatusCompleted
}
