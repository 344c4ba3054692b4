package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"agrinexus/internal/service/market/domain"
)

// GormCardRepository 是 CardRepository 的 GORM 实现
type GormCardRepository struct {
	db *gorm.DB
}

// NewGormCardRepository 创建一个新的 GORM 仓储实例
func NewGormCardRepository(db *gorm.DB) *GormCardRepository {
	return &GormCardRepository{db: db}
}

func (r *GormCardRepository) Create(ctx context.Context, card *domain.MarketCard) error {
	if err := r.db.WithContext(ctx).Create(FromDomainCard(card)).Error; err != nil {
		return errors.Wrapf(err, "insert market card %s", card.ID)
	}
	return nil
}

func (r *GormCardRepository) FindByID(ctx context.Context, id string) (*domain.MarketCard, error) {
	var model MarketCardModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, errors.Wrapf(err, "find market card %s", id)
	}
	return ToDomainCard(&model), nil
}

// Update 整行覆盖除主键和创建时间外的所有字段，以读到的 updated_at 做乐观并发控制
func (r *GormCardRepository) Update(ctx context.Context, card *domain.MarketCard, readAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&MarketCardModel{ID: card.ID}).
		Where("updated_at = ?", readAt).
		Select("*").Omit("id", "created_at").
		Updates(FromDomainCard(card))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update market card %s", card.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCardModified
	}
	return nil
}

func (r *GormCardRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&MarketCardModel{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete market card %s", id)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// List 按条件分页查询
func (r *GormCardRepository) List(ctx context.Context, q domain.CardQuery) ([]*domain.MarketCard, error) {
	tx := r.db.WithContext(ctx).Model(&MarketCardModel{})
	if q.OwnerID != "" {
		tx = tx.Where("owner_id = ?", q.OwnerID)
	}
	if q.CropName != "" {
		tx = tx.Where("crop_name LIKE ?", "%"+q.CropName+"%")
	}
	if q.CardType != "" {
		tx = tx.Where("card_type = ?", string(q.CardType))
	}
	if q.PriceType != "" {
		tx = tx.Where("price_type = ?", string(q.PriceType))
	}
	if q.Location != "" {
		tx = tx.Where("location LIKE ?", "%"+q.Location+"%")
	}
	if q.ActiveOnly {
		tx = tx.Where("is_active = ?", true)
	}

	var models []MarketCardModel
	if err := paginate(tx, q.Limit, q.Offset).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list market cards")
	}
	out := make([]*domain.MarketCard, 0, len(models))
	for i := range models {
		out = append(out, ToDomainCard(&models[i]))
	}
	return out, nil
}

// paginate 最新的在前；limit 为 0 时不分页
func paginate(tx *gorm.DB, limit, offset int) *gorm.DB {
	tx = tx.Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	return tx
}

// GormListingRepository 是 ListingRepository 的 GORM 实现
type GormListingRepository struct {
	db *gorm.DB
}

func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

func (r *GormListingRepository) Create(ctx context.Context, l *domain.ProduceListing) error {
	if err := r.db.WithContext(ctx).Create(FromDomainListing(l)).Error; err != nil {
		return errors.Wrapf(err, "insert produce listing %s", l.ID)
	}
	return nil
}

func (r *GormListingRepository) FindByID(ctx context.Context, id string) (*domain.ProduceListing, error) {
	var model ProduceListingModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrListingNotFound
		}
		return nil, errors.Wrapf(err, "find produce listing %s", id)
	}
	return ToDomainListing(&model), nil
}

// Update 带上读到的状态做条件写入，期间被过期任务或其他请求关闭的挂牌不会被改回
func (r *GormListingRepository) Update(ctx context.Context, l *domain.ProduceListing, expected domain.ListingStatus) error {
	res := r.db.WithContext(ctx).Model(&ProduceListingModel{ID: l.ID}).
		Where("status = ?", string(expected)).
		Select("*").Omit("id", "created_at").
		Updates(FromDomainListing(l))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update produce listing %s", l.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrListingClosed
	}
	return nil
}

func (r *GormListingRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ProduceListingModel{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete produce listing %s", id)
	}
	if res.RowsAffected == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *GormListingRepository) List(ctx context.Context, q domain.ListingQuery) ([]*domain.ProduceListing, error) {
	tx := r.db.WithContext(ctx).Model(&ProduceListingModel{})
	if q.FarmerID != "" {
		tx = tx.Where("farmer_id = ?", q.FarmerID)
	}
	if q.CropName != "" {
		tx = tx.Where("crop_name LIKE ?", "%"+q.CropName+"%")
	}
	if q.PriceType != "" {
		tx = tx.Where("price_type = ?", string(q.PriceType))
	}
	if q.Location != "" {
		tx = tx.Where("location LIKE ?", "%"+q.Location+"%")
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}

	var models []ProduceListingModel
	if err := paginate(tx, q.Limit, q.Offset).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list produce listings")
	}
	out := make([]*domain.ProduceListing, 0, len(models))
	for i := range models {
		out = append(out, ToDomainListing(&models[i]))
	}
	return out, nil
}

func (r *GormListingRepository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&ProduceListingModel{}).
		Where("status = ? AND created_at < ?", string(domain.ListingActive), cutoff).
		Updates(map[string]any{"status": string(domain.ListingExpired), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "expire produce listings")
	}
	return res.RowsAffected, nil
}
