package adapter

import (
	"context"

	"github.com/pkg/errors"

	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
	marketdomain "agrinexus/internal/service/market/domain"
)

// CardFinder 由市场服务实现
type CardFinder interface {
	FindCard(ctx context.Context, id string) (*marketdomain.MarketCard, error)
}

// MarketCatalogAdapter 在同一进程内通过市场服务查询卡片
type MarketCatalogAdapter struct {
	cards CardFinder
}

func NewMarketCatalogAdapter(cards CardFinder) *MarketCatalogAdapter {
	return &MarketCatalogAdapter{cards: cards}
}

func (a *MarketCatalogAdapter) GetCard(ctx context.Context, cardID string) (*port.CardSnapshot, error) {
	card, err := a.cards.FindCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, marketdomain.ErrCardNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return &port.CardSnapshot{
		ID:                card.ID,
		OwnerID:           card.OwnerID,
		CropName:          card.CropName,
		Unit:              card.Unit,
		AvailableQuantity: card.AvailableQuantity,
		IsActive:          card.IsActive,
	}, nil
}
