package infrastructure

import (
	"database/sql"
	"time"

	"agrinexus/internal/service/delivery/domain"
)

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ToDomainRequest 将数据库模型转换为领域实体
func ToDomainRequest(m *DeliveryRequestModel) *domain.DeliveryRequest {
	return &domain.DeliveryRequest{
		ID:                m.ID,
		MarketCardID:      m.MarketCardID,
		BuyerID:           m.BuyerID,
		SellerID:          m.SellerID,
		RequestedQuantity: m.RequestedQuantity,
		RequestedPrice:    m.RequestedPrice,
		DeliveryAddress:   m.DeliveryAddress,
		BuyerNotes:        m.BuyerNotes,
		SellerNotes:       m.SellerNotes,
		Status:            domain.Status(m.Status),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		RespondedAt:       timePtr(m.RespondedAt),
		CompletedAt:       timePtr(m.CompletedAt),
	}
}

// FromDomainRequest 将领域实体转换为数据库模型
func FromDomainRequest(r *domain.DeliveryRequest) *DeliveryRequestModel {
	return &DeliveryRequestModel{
		ID:                r.ID,
		MarketCardID:      r.MarketCardID,
		BuyerID:           r.BuyerID,
		SellerID:          r.SellerID,
		RequestedQuantity: r.RequestedQuantity,
		RequestedPrice:    r.RequestedPrice,
		DeliveryAddress:   r.DeliveryAddress,
		BuyerNotes:        r.BuyerNotes,
		SellerNotes:       r.SellerNotes,
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		RespondedAt:       nullTime(r.RespondedAt),
		CompletedAt:       nullTime(r.CompletedAt),
	}
}

func ToDomainShipment(m *DeliveryShipmentModel) *domain.DeliveryShipment {
	return &domain.DeliveryShipment{
		ID:                m.ID,
		DeliveryRequestID: m.DeliveryRequestID,
		Status:            domain.ShipmentStatus(m.Status),
		LastKnownLocation: m.LastKnownLocation,
		Carrier:           m.Carrier,
		TrackingNumber:    m.TrackingNumber,
		UpdatedAt:         m.UpdatedAt,
	}
}

func FromDomainShipment(s *domain.DeliveryShipment) *DeliveryShipmentModel {
	return &DeliveryShipmentModel{
		ID:                s.ID,
		DeliveryRequestID: s.DeliveryRequestID,
		Status:            string(s.Status),
		LastKnownLocation: s.LastKnownLocation,
		Carrier:           s.Carrier,
		TrackingNumber:    s.TrackingNumber,
		UpdatedAt:         s.UpdatedAt,
	}
}
