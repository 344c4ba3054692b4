package domain

import "context"

// RequestRepository 定义了配送请求的持久化接口
type RequestRepository interface {
	Create(ctx context.Context, r *DeliveryRequest) error
	FindByID(ctx context.Context, id string) (*DeliveryRequest, error)
	// ListByBuyer / ListBySeller 按创建时间倒序，status 为空表示不过滤
	ListByBuyer(ctx context.Context, buyerID string, status Status) ([]*DeliveryRequest, error)
	ListBySeller(ctx context.Context, sellerID string, status Status) ([]*DeliveryRequest, error)
	// UpdateStatus 条件更新：仅当当前状态仍为 expected 时写入，否则返回 ErrInvalidTransition
	UpdateStatus(ctx context.Context, r *DeliveryRequest, expected Status) error
}

// ShipmentRepository 定义了物流记录的持久化接口
type ShipmentRepository interface {
	FindByRequestID(ctx context.Context, requestID string) (*DeliveryShipment, error)
	Create(ctx context.Context, s *DeliveryShipment) error
	// Update 条件更新：仅当当前状态仍为 expected 时写入
	Update(ctx context.Context, s *DeliveryShipment, expected ShipmentStatus) error
}
