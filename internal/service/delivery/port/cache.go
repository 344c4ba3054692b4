package port

import (
	"context"

	"agrinexus/internal/service/delivery/domain"
)

// Role 是用户在请求列表中的视角
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// RequestListCache 缓存每个用户的请求列表。
// 每个用户视角有一个代数，Invalidate 会递增它；回填时代数已变化则放弃写入，
// 这样失效之前读出的旧数据不会在失效之后写回缓存。
type RequestListCache interface {
	Get(ctx context.Context, role Role, userID string, status domain.Status) ([]*domain.DeliveryRequest, bool, error)
	// Generation 必须在读库之前调用
	Generation(ctx context.Context, role Role, userID string) (int64, error)
	// Set 仅当代数仍等于 gen 时写入
	Set(ctx context.Context, role Role, userID string, status domain.Status, gen int64, list []*domain.DeliveryRequest) error
	// Invalidate 清除买家视角和卖家视角的全部缓存
	Invalidate(ctx context.Context, buyerID, sellerID string) error
}
