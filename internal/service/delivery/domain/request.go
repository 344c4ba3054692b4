package domain

import (
	"strings"
	"time"

	"agrinexus/internal/pkg/apperr"
)

// Action 是对配送请求的一次操作
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Target 返回操作对应的目标状态
func (a Action) Target() (Status, bool) {
	switch a {
	case ActionAccept:
		return StatusAccepted, true
	case ActionReject:
		return StatusRejected, true
	case ActionComplete:
		return StatusCompleted, true
	case ActionCancel:
		return StatusCancelled, true
	}
	return "", false
}

// bySeller accept / reject / complete 只能由卖家执行，cancel 只能由买家执行
func (a Action) bySeller() bool {
	return a != ActionCancel
}

// DeliveryRequest 是买家针对一张市场卡片发起的配送请求。
type DeliveryRequest struct {
	ID                string
	MarketCardID      string
	BuyerID           string
	SellerID          string
	RequestedQuantity float64
	RequestedPrice    float64
	DeliveryAddress   string
	BuyerNotes        string
	SellerNotes       string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
	RespondedAt       *time.Time
	CompletedAt       *time.Time
}

// NewDeliveryRequest 校验入参并创建 pending 状态的请求。
func NewDeliveryRequest(id, cardID, buyerID, sellerID string, qty, price float64, address, notes string, now time.Time) (*DeliveryRequest, error) {
	if qty <= 0 {
		return nil, apperr.Validation("requested quantity must be greater than zero")
	}
	if price < 0 {
		return nil, apperr.Validation("requested price must not be negative")
	}
	if strings.TrimSpace(address) == "" {
		return nil, apperr.Validation("delivery address is required")
	}
	if buyerID == sellerID {
		return nil, ErrOwnCard
	}
	return &DeliveryRequest{
		ID:                id,
		MarketCardID:      cardID,
		BuyerID:           buyerID,
		SellerID:          sellerID,
		RequestedQuantity: qty,
		RequestedPrice:    price,
		DeliveryAddress:   strings.TrimSpace(address),
		BuyerNotes:        notes,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsParticipant 买家或卖家
func (r *DeliveryRequest) IsParticipant(userID string) bool {
	return userID != "" && (userID == r.BuyerID || userID == r.SellerID)
}

// CheckView 只有买卖双方可以查看。
func (r *DeliveryRequest) CheckView(userID string) error {
	if !r.IsParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}

// Apply 执行一次状态流转：校验操作者、校验流转、写入备注和时间戳。
// 返回流转前的状态。失败时实体不变。
func (r *DeliveryRequest) Apply(action Action, actorID, note string, now time.Time) (Status, error) {
	to, ok := action.Target()
	if !ok {
		return "", apperr.Validationf("unknown action %q", action)
	}
	if !r.IsParticipant(actorID) {
		return "", ErrNotParticipant
	}
	if action.bySeller() && actorID != r.SellerID {
		return "", ErrWrongActor.Withf("only the seller may %s", action)
	}
	if !action.bySeller() && actorID != r.BuyerID {
		return "", ErrWrongActor.Withf("only the buyer may %s", action)
	}
	from := r.Status
	if !CanTransition(from, to) {
		return "", ErrInvalidTransition.Withf("cannot %s a %s request", action, from)
	}

	r.Status = to
	r.UpdatedAt = now
	if note != "" {
		if action.bySeller() {
			r.SellerNotes = note
		} else {
			r.BuyerNotes = note
		}
	}
	switch to {
	case StatusAccepted, StatusRejected:
		r.RespondedAt = &now
	case StatusCompleted:
		r.CompletedAt = &now
	}
	return from, nil
}
