package domain

import (
	"context"
	"time"
)

// CardQuery 是卡片列表的 SQL 层过滤条件。
type CardQuery struct {
	OwnerID    string
	CropName   string
	CardType   CardType
	PriceType  PriceType
	Location   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ListingQuery 是挂牌列表的 SQL 层过滤条件。
type ListingQuery struct {
	FarmerID  string
	CropName  string
	PriceType PriceType
	Location  string
	Status    ListingStatus
	Limit     int
	Offset    int
}

// CardRepository 定义了市场卡片的持久化接口
type CardRepository interface {
	Create(ctx context.Context, card *MarketCard) error
	FindByID(ctx context.Context, id string) (*MarketCard, error)
	// Update 仅当库中 updated_at 仍等于 readAt 时写入，否则返回 ErrCardModified
	Update(ctx context.Context, card *MarketCard, readAt time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q CardQuery) ([]*MarketCard, error)
}

// ListingRepository 定义了农产品挂牌的持久化接口
type ListingRepository interface {
	Create(ctx context.Context, listing *ProduceListing) error
	FindByID(ctx context.Context, id string) (*ProduceListing, error)
	// Update 仅当库中状态仍为 expected 时写入，否则返回 ErrListingClosed
	Update(ctx context.Context, listing *ProduceListing, expected ListingStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ListingQuery) ([]*ProduceListing, error)
	// ExpireBefore 把 cutoff 之前创建、仍在售的挂牌标记为过期，返回影响行数
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ImageStore 保存图片并返回可公开访问的 URL。
type ImageStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
