package port

import "context"

// CardSnapshot 是创建配送请求时需要的卡片信息
type CardSnapshot struct {
	ID                string
	OwnerID           string
	CropName          string
	Unit              string
	AvailableQuantity float64
	IsActive          bool
}

// CardCatalog 查询市场卡片，找不到时返回 domain.ErrCardNotFound
type CardCatalog interface {
	GetCard(ctx context.Context, cardID string) (*CardSnapshot, error)
}
