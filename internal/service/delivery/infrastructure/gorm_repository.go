package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"agrinexus/internal/pkg/database"
	"agrinexus/internal/service/delivery/domain"
)

// GormRequestRepository 是 RequestRepository 的 GORM 实现
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository 创建一个新的 GORM 仓储实例
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

func (r *GormRequestRepository) Create(ctx context.Context, req *domain.DeliveryRequest) error {
	if err := r.db.WithContext(ctx).Create(FromDomainRequest(req)).Error; err != nil {
		return errors.Wrapf(err, "insert delivery request %s", req.ID)
	}
	return nil
}

func (r *GormRequestRepository) FindByID(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	var model DeliveryRequestModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, errors.Wrapf(err, "find delivery request %s", id)
	}
	return ToDomainRequest(&model), nil
}

func (r *GormRequestRepository) ListByBuyer(ctx context.Context, buyerID string, status domain.Status) ([]*domain.DeliveryRequest, error) {
	return r.list(ctx, "buyer_id", buyerID, status)
}

func (r *GormRequestRepository) ListBySeller(ctx context.Context, sellerID string, status domain.Status) ([]*domain.DeliveryRequest, error) {
	return r.list(ctx, "seller_id", sellerID, status)
}

func (r *GormRequestRepository) list(ctx context.Context, column, userID string, status domain.Status) ([]*domain.DeliveryRequest, error) {
	tx := r.db.WithContext(ctx).Model(&DeliveryRequestModel{}).Where(column+" = ?", userID)
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}
	var models []DeliveryRequestModel
	if err := tx.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "list delivery requests by %s", column)
	}
	out := make([]*domain.DeliveryRequest, 0, len(models))
	for i := range models {
		out = append(out, ToDomainRequest(&models[i]))
	}
	return out, nil
}

// UpdateStatus 只有当前状态仍为 expected 时才写入。
// 影响行数为 0 说明状态已被并发修改。
func (r *GormRequestRepository) UpdateStatus(ctx context.Context, req *domain.DeliveryRequest, expected domain.Status) error {
	m := FromDomainRequest(req)
	res := r.db.WithContext(ctx).Model(&DeliveryRequestModel{}).
		Where("id = ? AND status = ?", req.ID, string(expected)).
		Updates(map[string]any{
			"status":       m.Status,
			"buyer_notes":  m.BuyerNotes,
			"seller_notes": m.SellerNotes,
			"updated_at":   m.UpdatedAt,
			"responded_at": m.RespondedAt,
			"completed_at": m.CompletedAt,
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update delivery request %s", req.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidTransition.Withf("request %s is no longer %s", req.ID, expected)
	}
	return nil
}

// GormShipmentRepository 是 ShipmentRepository 的 GORM 实现
type GormShipmentRepository struct {
	db *gorm.DB
}

func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

func (r *GormShipmentRepository) FindByRequestID(ctx context.Context, requestID string) (*domain.DeliveryShipment, error) {
	var model DeliveryShipmentModel
	err := r.db.WithContext(ctx).Where("delivery_request_id = ?", requestID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, errors.Wrapf(err, "find shipment for request %s", requestID)
	}
	return ToDomainShipment(&model), nil
}

func (r *GormShipmentRepository) Create(ctx context.Context, s *domain.DeliveryShipment) error {
	if err := r.db.WithContext(ctx).Create(FromDomainShipment(s)).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return domain.ErrShipmentExists
		}
		return errors.Wrapf(err, "insert shipment for request %s", s.DeliveryRequestID)
	}
	return nil
}

// Update 以 expected 状态为条件，避免两个消费者互相覆盖
func (r *GormShipmentRepository) Update(ctx context.Context, s *domain.DeliveryShipment, expected domain.ShipmentStatus) error {
	res := r.db.WithContext(ctx).Model(&DeliveryShipmentModel{}).
		Where("id = ? AND status = ?", s.ID, string(expected)).
		Updates(map[string]any{
			"status":              string(s.Status),
			"last_known_location": s.LastKnownLocation,
			"carrier":             s.Carrier,
			"tracking_number":     s.TrackingNumber,
			"updated_at":          s.UpdatedAt,
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update shipment %s", s.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidTransition.Withf("shipment %s is no longer %s", s.ID, expected)
	}
	return nil
}
