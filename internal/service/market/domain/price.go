// internal/service/market/domain/price.go
package domain

import (
	"fmt"

	"agrinexus/internal/pkg/apperr"
)

// PriceType 定义了挂牌的报价方式。
type PriceType string

const (
	PriceFixed      PriceType = "fixed"
	PriceRange      PriceType = "range"
	PriceNegotiable PriceType = "negotiable"
)

// Price 是报价。金额都是可选的，是否必填取决于 Type。
type Price struct {
	Type   PriceType
	Amount *float64
	Min    *float64
	Max    *float64
}

// Validate 按报价方式校验金额：
// fixed 需要 Amount > 0；range 需要 0 < Min <= Max；negotiable 只要求给出的金额不为负。
func (p Price) Validate() error {
	switch p.Type {
	case PriceFixed:
		if p.Amount == nil || *p.Amount <= 0 {
			return apperr.Validation("fixed price requires an amount greater than zero")
		}
	case PriceRange:
		if p.Min == nil || p.Max == nil {
			return apperr.Validation("range price requires both min and max")
		}
		if *p.Min <= 0 {
			return apperr.Validation("range price min must be greater than zero")
		}
		if *p.Min > *p.Max {
			return apperr.Validation("range price min must not exceed max")
		}
	case PriceNegotiable:
		for _, v := range []*float64{p.Amount, p.Min, p.Max} {
			if v != nil && *v < 0 {
				return apperr.Validation("negotiable price amounts must not be negative")
			}
		}
	default:
		return apperr.Validationf("unknown price type %q", p.Type)
	}
	return nil
}

// String 用于分享文案。
func (p Price) String() string {
	switch p.Type {
	case PriceFixed:
		if p.Amount != nil {
			return fmt.Sprintf("%.2f", *p.Amount)
		}
	case PriceRange:
		if p.Min != nil && p.Max != nil {
			return fmt.Sprintf("%.2f-%.2f", *p.Min, *p.Max)
		}
	case PriceNegotiable:
		if p.Amount != nil {
			return fmt.Sprintf("%.2f (negotiable)", *p.Amount)
		}
	}
	return "negotiable"
}
