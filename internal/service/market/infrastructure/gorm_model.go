package infrastructure

import (
	"database/sql"
	"time"
)

// MarketCardModel 对应数据库中的 market_cards 表
type MarketCardModel struct {
	ID                string          `gorm:"primaryKey;size:36"`
	OwnerID           string          `gorm:"size:64;index"`
	CardType          string          `gorm:"size:8;index"`
	CropName          string          `gorm:"size:128;index"`
	Variety           string          `gorm:"size:128"`
	Quantity          float64         `gorm:"type:decimal(12,3)"`
	AvailableQuantity float64         `gorm:"type:decimal(12,3)"`
	Unit              string          `gorm:"size:32"`
	PriceType         string          `gorm:"size:16;index"`
	PriceAmount       sql.NullFloat64 `gorm:"type:decimal(12,2)"`
	PriceMin          sql.NullFloat64 `gorm:"type:decimal(12,2)"`
	PriceMax          sql.NullFloat64 `gorm:"type:decimal(12,2)"`
	Location          string          `gorm:"size:255"`
	Description       string          `gorm:"type:text"`
	ContactPhone      string          `gorm:"size:32"`
	ImageURL          string          `gorm:"size:512"`
	IsActive          bool            `gorm:"index"`
	CreatedAt         time.Time       `gorm:"index"`
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (MarketCardModel) TableName() string {
	return "market_cards"
}

// ProduceListingModel 对应数据库中的 produce_listings 表
type ProduceListingModel struct {
	ID           string          `gorm:"primaryKey;size:36"`
	FarmerID     string          `gorm:"size:64;index"`
	CropName     string          `gorm:"size:128;index"`
	Variety      string          `gorm:"size:128"`
	Quantity     float64         `gorm:"type:decimal(12,3)"`
	Unit         string          `gorm:"size:32"`
	QualityGrade string          `gorm:"size:16"`
	HarvestDate  sql.NullTime    `gorm:"type:date"`
	PriceType    string          `gorm:"size:16;index"`
	PriceAmount  sql.NullFloat64 `gorm:"type:decimal(12,2)"`
	PriceMin     sql.NullFloat64 `gorm:"type:decimal(12,2)"`
	PriceMax     sql.NullFloat64 `gorm:"type:decimal(12,2)"`
	Location     string          `gorm:"size:255"`
	Description  string          `gorm:"type:text"`
	ImageURL     string          `gorm:"size:512"`
	Status       string          `gorm:"size:16;index"`
	CreatedAt    time.Time       `gorm:"index"`
	UpdatedAt    time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProduceListingModel) TableName() string {
	return "produce_listings"
}

// Models 返回需要迁移的表，供 marketctl migrate 使用。
func Models() []any {
	return []any{&MarketCardModel{}, &ProduceListingModel{}}
}
