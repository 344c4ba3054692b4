// internal/service/market/domain/card.go
package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/auth"
)

// CardType 区分卖出与求购。
type CardType string

const (
	CardSell CardType = "sell"
	CardBuy  CardType = "buy"
)

// MarketCard 是用户在市场上发布的一张卡片，买家针对它发起配送请求。
type MarketCard struct {
	ID                string
	OwnerID           string
	CardType          CardType
	CropName          string
	Variety           string
	Quantity          float64
	AvailableQuantity float64
	Unit              string
	Price             Price
	Location          string
	Description       string
	ContactPhone      string
	ImageURL          string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate 校验卡片的不变量。
func (c *MarketCard) Validate() error {
	if c.CardType != CardSell && c.CardType != CardBuy {
		return apperr.Validationf("card type must be sell or buy, got %q", c.CardType)
	}
	if strings.TrimSpace(c.CropName) == "" {
		return apperr.Validation("crop name is required")
	}
	if strings.TrimSpace(c.Unit) == "" {
		return apperr.Validation("unit is required")
	}
	if c.Quantity < 0 || c.AvailableQuantity < 0 {
		return apperr.Validation("quantities must not be negative")
	}
	if c.AvailableQuantity > c.Quantity {
		return apperr.Validation("available quantity must not exceed quantity")
	}
	return c.Price.Validate()
}

// CheckOwner 只有发布者可以修改卡片。
func (c *MarketCard) CheckOwner(p auth.Principal) error {
	if c.OwnerID != p.UserID {
		return ErrNotOwner
	}
	return nil
}

// CheckDelete 发布者或管理员可以删除。
func (c *MarketCard) CheckDelete(p auth.Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return c.CheckOwner(p)
}

// ShareLinks 是卡片对外的联系方式和分享链接。
type ShareLinks struct {
	Tel      string `json:"tel,omitempty"`
	WhatsApp string `json:"whatsapp"`
}

// ShareText 生成分享文案，例如 "Selling Tomato (Hybrid): 100 kg at 25.00 per kg"。
func (c *MarketCard) ShareText() string {
	verb := "Selling"
	if c.CardType == CardBuy {
		verb = "Buying"
	}
	crop := c.CropName
	if c.Variety != "" {
		crop = fmt.Sprintf("%s (%s)", c.CropName, c.Variety)
	}
	text := fmt.Sprintf("%s %s: %g %s at %s per %s", verb, crop, c.AvailableQuantity, c.Unit, c.Price, c.Unit)
	if c.Location != "" {
		text += ", " + c.Location
	}
	if c.ContactPhone != "" {
		text += ". Contact " + c.ContactPhone
	}
	return text
}

// Links 生成 tel: 与 wa.me 分享链接。
func (c *MarketCard) Links() ShareLinks {
	links := ShareLinks{WhatsApp: "https://wa.me/?text=" + url.QueryEscape(c.ShareText())}
	if phone := strings.Map(keepDialable, c.ContactPhone); phone != "" {
		links.Tel = "tel:" + phone
	}
	return links
}

func keepDialable(r rune) rune {
	if (r >= '0' && r <= '9') || r == '+' {
		return r
	}
	return -1
}
