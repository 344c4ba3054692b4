package infrastructure

import (
	"database/sql"
	"time"

	"agrinexus/internal/service/market/domain"
)

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toDomainPrice(t string, amount, lo, hi sql.NullFloat64) domain.Price {
	return domain.Price{Type: domain.PriceType(t), Amount: floatPtr(amount), Min: floatPtr(lo), Max: floatPtr(hi)}
}

// ToDomainCard 将数据库模型转换为领域模型
func ToDomainCard(m *MarketCardModel) *domain.MarketCard {
	if m == nil {
		return nil
	}
	return &domain.MarketCard{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		CardType:          domain.CardType(m.CardType),
		CropName:          m.CropName,
		Variety:           m.Variety,
		Quantity:          m.Quantity,
		AvailableQuantity: m.AvailableQuantity,
		Unit:              m.Unit,
		Price:             toDomainPrice(m.PriceType, m.PriceAmount, m.PriceMin, m.PriceMax),
		Location:          m.Location,
		Description:       m.Description,
		ContactPhone:      m.ContactPhone,
		ImageURL:          m.ImageURL,
		IsActive:          m.IsActive,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomainCard 将领域模型转换为数据库模型
func FromDomainCard(c *domain.MarketCard) *MarketCardModel {
	if c == nil {
		return nil
	}
	return &MarketCardModel{
		ID:                c.ID,
		OwnerID:           c.OwnerID,
		CardType:          string(c.CardType),
		CropName:          c.CropName,
		Variety:           c.Variety,
		Quantity:          c.Quantity,
		AvailableQuantity: c.AvailableQuantity,
		Unit:              c.Unit,
		PriceType:         string(c.Price.Type),
		PriceAmount:       nullFloat(c.Price.Amount),
		PriceMin:          nullFloat(c.Price.Min),
		PriceMax:          nullFloat(c.Price.Max),
		Location:          c.Location,
		Description:       c.Description,
		ContactPhone:      c.ContactPhone,
		ImageURL:          c.ImageURL,
		IsActive:          c.IsActive,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ToDomainListing 将数据库模型转换为领域模型
func ToDomainListing(m *ProduceListingModel) *domain.ProduceListing {
	if m == nil {
		return nil
	}
	l := &domain.ProduceListing{
		ID:           m.ID,
		FarmerID:     m.FarmerID,
		CropName:     m.CropName,
		Variety:      m.Variety,
		Quantity:     m.Quantity,
		Unit:         m.Unit,
		QualityGrade: m.QualityGrade,
		Price:        toDomainPrice(m.PriceType, m.PriceAmount, m.PriceMin, m.PriceMax),
		Location:     m.Location,
		Description:  m.Description,
		ImageURL:     m.ImageURL,
		Status:       domain.ListingStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.HarvestDate.Valid {
		t := m.HarvestDate.Time
		l.HarvestDate = &t
	}
	return l
}

// FromDomainListing 将领域模型转换为数据库模型
func FromDomainListing(l *domain.ProduceListing) *ProduceListingModel {
	if l == nil {
		return nil
	}
	m := &ProduceListingModel{
		ID:           l.ID,
		FarmerID:     l.FarmerID,
		CropName:     l.CropName,
		Variety:      l.Variety,
		Quantity:     l.Quantity,
		Unit:         l.Unit,
		QualityGrade: l.QualityGrade,
		PriceType:    string(l.Price.Type),
		PriceAmount:  nullFloat(l.Price.Amount),
		PriceMin:     nullFloat(l.Price.Min),
		PriceMax:     nullFloat(l.Price.Max),
		Location:     l.Location,
		Description:  l.Description,
		ImageURL:     l.ImageURL,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if l.HarvestDate != nil {
		m.HarvestDate = sql.NullTime{Time: l.HarvestDate.UTC().Truncate(24 * time.Hour), Valid: true}
	}
	return m
}
