package application

import (
	"time"

	"agrinexus/internal/service/delivery/domain"
)

// CreateRequestInput 买家发起配送请求
type CreateRequestInput struct {
	MarketCardID      string  `json:"market_card_id"`
	RequestedQuantity float64 `json:"requested_quantity"`
	RequestedPrice    float64 `json:"requested_price"`
	DeliveryAddress   string  `json:"delivery_address"`
	BuyerNotes        string  `json:"buyer_notes"`
}

// TransitionInput 是 accept / reject / complete / cancel 的请求体
type TransitionInput struct {
	Note string `json:"note"`
}

// RequestResponse 配送请求
type RequestResponse struct {
	ID                string        `json:"id"`
	MarketCardID      string        `json:"market_card_id"`
	BuyerID           string        `json:"buyer_id"`
	SellerID          string        `json:"seller_id"`
	RequestedQuantity float64       `json:"requested_quantity"`
	RequestedPrice    float64       `json:"requested_price"`
	DeliveryAddress   string        `json:"delivery_address"`
	BuyerNotes        string        `json:"buyer_notes,omitempty"`
	SellerNotes       string        `json:"seller_notes,omitempty"`
	Status            domain.Status `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	RespondedAt       *time.Time    `json:"responded_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// CreateRequestResponse 创建结果，warnings 不影响创建成功
type CreateRequestResponse struct {
	Request  *RequestResponse `json:"request"`
	Warnings []string         `json:"warnings,omitempty"`
}

// ShipmentResponse 物流信息
type ShipmentResponse struct {
	ID                string                `json:"id"`
	DeliveryRequestID string                `json:"delivery_request_id"`
	Status            domain.ShipmentStatus `json:"status"`
	LastKnownLocation string                `json:"last_known_location,omitempty"`
	Carrier           string                `json:"carrier,omitempty"`
	TrackingNumber    string                `json:"tracking_number,omitempty"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func toRequestResponse(r *domain.DeliveryRequest) *RequestResponse {
	return &RequestResponse{
		ID: r.ID, MarketCardID: r.MarketCardID, BuyerID: r.BuyerID, SellerID: r.SellerID,
		RequestedQuantity: r.RequestedQuantity, RequestedPrice: r.RequestedPrice,
		DeliveryAddress: r.DeliveryAddress, BuyerNotes: r.BuyerNotes, SellerNotes: r.SellerNotes,
		Status: r.Status, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		RespondedAt: r.RespondedAt, CompletedAt: r.CompletedAt,
	}
}

func toShipmentResponse(s *domain.DeliveryShipment) *ShipmentResponse {
	return &ShipmentResponse{
		ID: s.ID, DeliveryRequestID: s.DeliveryRequestID, Status: s.Status,
		LastKnownLocation: s.LastKnownLocation, Carrier: s.Carrier, TrackingNumber: s.TrackingNumber,
		UpdatedAt: s.UpdatedAt,
	}
}
