// internal/service/market/domain/listing.go
package domain

import (
	"strings"
	"time"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/auth"
)

// ListingStatus 农产品挂牌状态
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingSold    ListingStatus = "sold"
	ListingExpired ListingStatus = "expired"
)

// ProduceListing 是农户发布的农产品挂牌。
type ProduceListing struct {
	ID           string
	FarmerID     string
	CropName     string
	Variety      string
	Quantity     float64
	Unit         string
	QualityGrade string
	HarvestDate  *time.Time
	Price        Price
	Location     string
	Description  string
	ImageURL     string
	Status       ListingStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (l *ProduceListing) Validate() error {
	if strings.TrimSpace(l.CropName) == "" {
		return apperr.Validation("crop name is required")
	}
	if strings.TrimSpace(l.Unit) == "" {
		return apperr.Validation("unit is required")
	}
	if l.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	return l.Price.Validate()
}

// CheckEdit 只有发布者可以修改，且只能修改在售的挂牌。
func (l *ProduceListing) CheckEdit(p auth.Principal) error {
	if l.FarmerID != p.UserID {
		return ErrNotOwner
	}
	if l.Status != ListingActive {
		return ErrListingClosed
	}
	return nil
}

// CheckDelete 发布者或管理员可以删除，任何状态都可以。
func (l *ProduceListing) CheckDelete(p auth.Principal) error {
	if p.IsAdmin() || l.FarmerID == p.UserID {
		return nil
	}
	return ErrNotOwner
}

// MarkSold 标记为已售出。
func (l *ProduceListing) MarkSold(p auth.Principal, now time.Time) error {
	if err := l.CheckEdit(p); err != nil {
		return err
	}
	l.Status = ListingSold
	l.UpdatedAt = now
	return nil
}
