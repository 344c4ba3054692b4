package application

import (
	"time"

	"agrinexus/internal/service/market/domain"
)

// PriceDTO 报价的 JSON 表示
type PriceDTO struct {
	Type   domain.PriceType `json:"type"`
	Amount *float64         `json:"amount,omitempty"`
	Min    *float64         `json:"min,omitempty"`
	Max    *float64         `json:"max,omitempty"`
}

func (p PriceDTO) toDomain() domain.Price {
	return domain.Price{Type: p.Type, Amount: p.Amount, Min: p.Min, Max: p.Max}
}

func priceDTO(p domain.Price) PriceDTO {
	return PriceDTO{Type: p.Type, Amount: p.Amount, Min: p.Min, Max: p.Max}
}

// CreateCardRequest 创建市场卡片
type CreateCardRequest struct {
	CardType          domain.CardType `json:"card_type"`
	CropName          string          `json:"crop_name"`
	Variety           string          `json:"variety"`
	Quantity          float64         `json:"quantity"`
	AvailableQuantity *float64        `json:"available_quantity"`
	Unit              string          `json:"unit"`
	Price             PriceDTO        `json:"price"`
	Location          string          `json:"location"`
	Description       string          `json:"description"`
	ContactPhone      string          `json:"contact_phone"`
}

// UpdateCardRequest 是部分更新，nil 字段保持不变
type UpdateCardRequest struct {
	CropName          *string   `json:"crop_name"`
	Variety           *string   `json:"variety"`
	Quantity          *float64  `json:"quantity"`
	AvailableQuantity *float64  `json:"available_quantity"`
	Unit              *string   `json:"unit"`
	Price             *PriceDTO `json:"price"`
	Location          *string   `json:"location"`
	Description       *string   `json:"description"`
	ContactPhone      *string   `json:"contact_phone"`
	IsActive          *bool     `json:"is_active"`
}

// CardResponse 市场卡片
type CardResponse struct {
	ID                string             `json:"id"`
	OwnerID           string             `json:"owner_id"`
	CardType          domain.CardType    `json:"card_type"`
	CropName          string             `json:"crop_name"`
	Variety           string             `json:"variety,omitempty"`
	Quantity          float64            `json:"quantity"`
	AvailableQuantity float64            `json:"available_quantity"`
	Unit              string             `json:"unit"`
	Price             PriceDTO           `json:"price"`
	Location          string             `json:"location,omitempty"`
	Description       string             `json:"description,omitempty"`
	ContactPhone      string             `json:"contact_phone,omitempty"`
	ImageURL          string             `json:"image_url,omitempty"`
	IsActive          bool               `json:"is_active"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Share             *domain.ShareLinks `json:"share,omitempty"`
}

// CardListQuery 是列表接口的查询参数
type CardListQuery struct {
	domain.CardQuery
	Filter string
}

// CreateListingRequest 创建农产品挂牌
type CreateListingRequest struct {
	CropName     string     `json:"crop_name"`
	Variety      string     `json:"variety"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit"`
	QualityGrade string     `json:"quality_grade"`
	HarvestDate  *time.Time `json:"harvest_date"`
	Price        PriceDTO   `json:"price"`
	Location     string     `json:"location"`
	Description  string     `json:"description"`
}

// UpdateListingRequest 是部分更新
type UpdateListingRequest struct {
	CropName     *string    `json:"crop_name"`
	Variety      *string    `json:"variety"`
	Quantity     *float64   `json:"quantity"`
	Unit         *string    `json:"unit"`
	QualityGrade *string    `json:"quality_grade"`
	HarvestDate  *time.Time `json:"harvest_date"`
	Price        *PriceDTO  `json:"price"`
	Location     *string    `json:"location"`
	Description  *string    `json:"description"`
}

// ListingResponse 农产品挂牌
type ListingResponse struct {
	ID           string               `json:"id"`
	FarmerID     string               `json:"farmer_id"`
	CropName     string               `json:"crop_name"`
	Variety      string               `json:"variety,omitempty"`
	Quantity     float64              `json:"quantity"`
	Unit         string               `json:"unit"`
	QualityGrade string               `json:"quality_grade,omitempty"`
	HarvestDate  *time.Time           `json:"harvest_date,omitempty"`
	Price        PriceDTO             `json:"price"`
	Location     string               `json:"location,omitempty"`
	Description  string               `json:"description,omitempty"`
	ImageURL     string               `json:"image_url,omitempty"`
	Status       domain.ListingStatus `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ListingListQuery 是列表接口的查询参数
type ListingListQuery struct {
	domain.ListingQuery
	Filter string
}

func toListingResponse(l *domain.ProduceListing) *ListingResponse {
	return &ListingResponse{
		ID: l.ID, FarmerID: l.FarmerID, CropName: l.CropName, Variety: l.Variety,
		Quantity: l.Quantity, Unit: l.Unit, QualityGrade: l.QualityGrade, HarvestDate: l.HarvestDate,
		Price: priceDTO(l.Price), Location: l.Location, Description: l.Description,
		ImageURL: l.ImageURL, Status: l.Status, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
}
