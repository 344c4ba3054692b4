package infrastructure

import (
	"database/sql"
	"time"
)

// DeliveryRequestModel 对应数据库中的 delivery_requests 表
type DeliveryRequestModel struct {
	ID                string    `gorm:"primaryKey;size:36"`
	MarketCardID      string    `gorm:"size:36;index"`
	BuyerID           string    `gorm:"size:64;index:idx_buyer_created,priority:1"`
	SellerID          string    `gorm:"size:64;index:idx_seller_created,priority:1"`
	RequestedQuantity float64   `gorm:"type:decimal(12,3)"`
	RequestedPrice    float64   `gorm:"type:decimal(12,2)"`
	DeliveryAddress   string    `gorm:"size:512"`
	BuyerNotes        string    `gorm:"type:text"`
	SellerNotes       string    `gorm:"type:text"`
	Status            string    `gorm:"size:16;index"`
	CreatedAt         time.Time `gorm:"index:idx_buyer_created,priority:2;index:idx_seller_created,priority:2"`
	UpdatedAt         time.Time
	RespondedAt       sql.NullTime
	CompletedAt       sql.NullTime
}

// TableName 指定 GORM 应该使用的表名
func (DeliveryRequestModel) TableName() string {
	return "delivery_requests"
}

// DeliveryShipmentModel 对应 delivery_shipments 表，每个配送请求最多一条
type DeliveryShipmentModel struct {
	ID                string `gorm:"primaryKey;size:36"`
	DeliveryRequestID string `gorm:"size:36;uniqueIndex"`
	Status            string `gorm:"size:24"`
	LastKnownLocation string `gorm:"size:255"`
	Carrier           string `gorm:"size:64"`
	TrackingNumber    string `gorm:"size:64"`
	UpdatedAt         time.Time
}

func (DeliveryShipmentModel) TableName() string {
	return "delivery_shipments"
}

// Models 返回需要迁移的表
func Models() []any {
	return []any{&DeliveryRequestModel{}, &DeliveryShipmentModel{}}
}
