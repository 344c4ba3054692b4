package application

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/metrics"
	"agrinexus/internal/service/market/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Settings 是可热更新的业务开关，每次调用时读取。
type Settings struct {
	MaxImageBytes    int64
	EnableShareLinks bool
}

// MarketService 定义了市场卡片和农产品挂牌的所有业务用例
type MarketService struct {
	cards         domain.CardRepository
	listings      domain.ListingRepository
	images        domain.ImageStore
	cardFilter    *FilterCompiler
	listingFilter *FilterCompiler
	settings      func() Settings
	tracer        trace.Tracer
	now           func() time.Time
}

// NewMarketService 创建一个新的市场服务实例
func NewMarketService(cards domain.CardRepository, listings domain.ListingRepository, images domain.ImageStore,
	settings func() Settings, tracer trace.Tracer) (*MarketService, error) {
	cardFilter, err := NewCardFilterCompiler()
	if err != nil {
		return nil, err
	}
	listingFilter, err := NewListingFilterCompiler()
	if err != nil {
		return nil, err
	}
	return &MarketService{
		cards:         cards,
		listings:      listings,
		images:        images,
		cardFilter:    cardFilter,
		listingFilter: listingFilter,
		settings:      settings,
		tracer:        tracer,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ---- 市场卡片 ----

// CreateCard 发布一张市场卡片。未给出 available_quantity 时等于 quantity。
func (s *MarketService) CreateCard(ctx context.Context, actor auth.Principal, req *CreateCardRequest) (*CardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateCard")
	defer span.End()

	now := s.now()
	card := &domain.MarketCard{
		ID:                uuid.NewString(),
		OwnerID:           actor.UserID,
		CardType:          req.CardType,
		CropName:          strings.TrimSpace(req.CropName),
		Variety:           strings.TrimSpace(req.Variety),
		Quantity:          req.Quantity,
		AvailableQuantity: req.Quantity,
		Unit:              strings.TrimSpace(req.Unit),
		Price:             req.Price.toDomain(),
		Location:          req.Location,
		Description:       req.Description,
		ContactPhone:      req.ContactPhone,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.AvailableQuantity != nil {
		card.AvailableQuantity = *req.AvailableQuantity
	}
	if err := card.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.String("market_card.id", card.ID))
	metrics.MarketPostingsCreatedTotal.WithLabelValues("card").Inc()
	logger.Ctx(ctx).Info().Msgf("[MarketCard: %s] created by %s (%s %s)", card.ID, actor.UserID, card.CardType, card.CropName)
	return s.toCardResponse(card), nil
}

// GetCard 任何登录用户都可以查看卡片。
func (s *MarketService) GetCard(ctx context.Context, id string) (*CardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetCard")
	defer span.End()
	span.SetAttributes(attribute.String("market_card.id", id))

	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return s.toCardResponse(card), nil
}

// FindCard 返回领域对象，供配送模块在进程内查询卡片。
func (s *MarketService) FindCard(ctx context.Context, id string) (*domain.MarketCard, error) {
	return s.cards.FindByID(ctx, id)
}

// ListCards 先按 SQL 条件分页，再用过滤表达式收窄当前页。
func (s *MarketService) ListCards(ctx context.Context, q CardListQuery) ([]*CardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListCards")
	defer span.End()

	q.Limit, q.Offset = normalizePage(q.Limit, q.Offset)
	filter, err := s.compileCardFilter(q.Filter)
	if err != nil {
		return nil, fail(span, err)
	}
	cards, err := s.cards.List(ctx, q.CardQuery)
	if err != nil {
		return nil, fail(span, err)
	}

	out := make([]*CardResponse, 0, len(cards))
	for _, c := range cards {
		if filter != nil && !filter(c) {
			continue
		}
		out = append(out, s.toCardResponse(c))
	}
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

func (s *MarketService) compileCardFilter(expr string) (func(*domain.MarketCard) bool, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	prg, err := s.cardFilter.Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(c *domain.MarketCard) bool { return Match(prg, cardVars(c)) }, nil
}

// UpdateCard 只有发布者可以修改。
func (s *MarketService) UpdateCard(ctx context.Context, actor auth.Principal, id string, req *UpdateCardRequest) (*CardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateCard")
	defer span.End()
	span.SetAttributes(attribute.String("market_card.id", id))

	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := card.CheckOwner(actor); err != nil {
		return nil, fail(span, err)
	}

	readAt := card.UpdatedAt
	applyCardPatch(card, req)
	card.UpdatedAt = s.now()
	if err := card.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.cards.Update(ctx, card, readAt); err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().Msgf("[MarketCard: %s] updated by owner", card.ID)
	return s.toCardResponse(card), nil
}

func applyCardPatch(card *domain.MarketCard, req *UpdateCardRequest) {
	if req.CropName != nil {
		card.CropName = strings.TrimSpace(*req.CropName)
	}
	if req.Variety != nil {
		card.Variety = strings.TrimSpace(*req.Variety)
	}
	if req.Quantity != nil {
		card.Quantity = *req.Quantity
	}
	if req.AvailableQuantity != nil {
		card.AvailableQuantity = *req.AvailableQuantity
	}
	if req.Unit != nil {
		card.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Price != nil {
		card.Price = req.Price.toDomain()
	}
	if req.Location != nil {
		card.Location = *req.Location
	}
	if req.Description != nil {
		card.Description = *req.Description
	}
	if req.ContactPhone != nil {
		card.ContactPhone = *req.ContactPhone
	}
	if req.IsActive != nil {
		card.IsActive = *req.IsActive
	}
}

// DeleteCard 发布者或管理员可以删除。
func (s *MarketService) DeleteCard(ctx context.Context, actor auth.Principal, id string) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteCard")
	defer span.End()
	span.SetAttributes(attribute.String("market_card.id", id))

	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if err := card.CheckDelete(actor); err != nil {
		return fail(span, err)
	}
	if err := s.cards.Delete(ctx, id); err != nil {
		return fail(span, err)
	}
	logger.Ctx(ctx).Info().Msgf("[MarketCard: %s] deleted by %s", id, actor.UserID)
	return nil
}

// UploadCardImage 校验类型和大小后写入对象存储，并更新卡片的 image_url。
func (s *MarketService) UploadCardImage(ctx context.Context, actor auth.Principal, id, contentType string, body []byte) (*CardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UploadCardImage")
	defer span.End()
	span.SetAttributes(attribute.String("market_card.id", id), attribute.Int("image.bytes", len(body)))

	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := card.CheckOwner(actor); err != nil {
		return nil, fail(span, err)
	}

	ext, err := s.checkImage(contentType, body)
	if err != nil {
		return nil, fail(span, err)
	}
	key := path.Join(card.ID, uuid.NewString()+ext)
	url, err := s.images.Put(ctx, key, body, contentType)
	if err != nil {
		return nil, fail(span, fmt.Errorf("store image for card %s: %w", card.ID, err))
	}

	readAt := card.UpdatedAt
	card.ImageURL = url
	card.UpdatedAt = s.now()
	if err := s.cards.Update(ctx, card, readAt); err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().Msgf("[MarketCard: %s] image uploaded (%d bytes)", card.ID, len(body))
	return s.toCardResponse(card), nil
}

// checkImage 同时检查声明的 Content-Type 和内容嗅探结果，防止伪造类型。
func (s *MarketService) checkImage(contentType string, body []byte) (string, error) {
	if limit := s.settings().MaxImageBytes; int64(len(body)) > limit {
		return "", domain.ErrImageTooLarge.Withf("%d bytes, limit %d", len(body), limit)
	}
	if len(body) == 0 {
		return "", domain.ErrImageType.Withf("empty body")
	}
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := allowedImageTypes[declared]
	if !ok {
		return "", domain.ErrImageType.Withf("got %q", contentType)
	}
	if sniffed := http.DetectContentType(body); sniffed != declared {
		return "", domain.ErrImageType.Withf("content looks like %q", sniffed)
	}
	return ext, nil
}

func (s *MarketService) toCardResponse(c *domain.MarketCard) *CardResponse {
	resp := &CardResponse{
		ID: c.ID, OwnerID: c.OwnerID, CardType: c.CardType, CropName: c.CropName, Variety: c.Variety,
		Quantity: c.Quantity, AvailableQuantity: c.AvailableQuantity, Unit: c.Unit,
		Price: priceDTO(c.Price), Location: c.Location, Description: c.Description,
		ContactPhone: c.ContactPhone, ImageURL: c.ImageURL, IsActive: c.IsActive,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
	if s.settings().EnableShareLinks {
		links := c.Links()
		resp.Share = &links
	}
	return resp
}

// ---- 农产品挂牌 ----

// CreateListing 发布一条农产品挂牌，初始状态为 active。
func (s *MarketService) CreateListing(ctx context.Context, actor auth.Principal, req *CreateListingRequest) (*ListingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateListing")
	defer span.End()

	now := s.now()
	l := &domain.ProduceListing{
		ID:           uuid.NewString(),
		FarmerID:     actor.UserID,
		CropName:     strings.TrimSpace(req.CropName),
		Variety:      strings.TrimSpace(req.Variety),
		Quantity:     req.Quantity,
		Unit:         strings.TrimSpace(req.Unit),
		QualityGrade: req.QualityGrade,
		HarvestDate:  req.HarvestDate,
		Price:        req.Price.toDomain(),
		Location:     req.Location,
		Description:  req.Description,
		Status:       domain.ListingActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("produce_listing.id", l.ID))
	metrics.MarketPostingsCreatedTotal.WithLabelValues("listing").Inc()
	logger.Ctx(ctx).Info().Msgf("[Listing: %s] created by %s (%s)", l.ID, actor.UserID, l.CropName)
	return toListingResponse(l), nil
}

func (s *MarketService) GetListing(ctx context.Context, id string) (*ListingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetListing")
	defer span.End()

	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return toListingResponse(l), nil
}

func (s *MarketService) ListListings(ctx context.Context, q ListingListQuery) ([]*ListingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListListings")
	defer span.End()

	q.Limit, q.Offset = normalizePage(q.Limit, q.Offset)
	var filter func(*domain.ProduceListing) bool
	if strings.TrimSpace(q.Filter) != "" {
		prg, err := s.listingFilter.Compile(q.Filter)
		if err != nil {
			return nil, fail(span, err)
		}
		filter = func(l *domain.ProduceListing) bool { return Match(prg, listingVars(l)) }
	}

	listings, err := s.listings.List(ctx, q.ListingQuery)
	if err != nil {
		return nil, fail(span, err)
	}
	out := make([]*ListingResponse, 0, len(listings))
	for _, l := range listings {
		if filter != nil && !filter(l) {
			continue
		}
		out = append(out, toListingResponse(l))
	}
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// UpdateListing 只有发布者可以修改在售的挂牌。
func (s *MarketService) UpdateListing(ctx context.Context, actor auth.Principal, id string, req *UpdateListingRequest) (*ListingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateListing")
	defer span.End()
	span.SetAttributes(attribute.String("produce_listing.id", id))

	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := l.CheckEdit(actor); err != nil {
		return nil, fail(span, err)
	}
	readStatus := l.Status

	if req.CropName != nil {
		l.CropName = strings.TrimSpace(*req.CropName)
	}
	if req.Variety != nil {
		l.Variety = strings.TrimSpace(*req.Variety)
	}
	if req.Quantity != nil {
		l.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		l.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.QualityGrade != nil {
		l.QualityGrade = *req.QualityGrade
	}
	if req.HarvestDate != nil {
		l.HarvestDate = req.HarvestDate
	}
	if req.Price != nil {
		l.Price = req.Price.toDomain()
	}
	if req.Location != nil {
		l.Location = *req.Location
	}
	if req.Description != nil {
		l.Description = *req.Description
	}
	l.UpdatedAt = s.now()
	if err := l.Validate(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.listings.Update(ctx, l, readStatus); err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().Msgf("[Listing: %s] updated by owner", l.ID)
	return toListingResponse(l), nil
}

// DeleteListing 发布者或管理员可以删除。
func (s *MarketService) DeleteListing(ctx context.Context, actor auth.Principal, id string) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteListing")
	defer span.End()
	span.SetAttributes(attribute.String("produce_listing.id", id))

	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if err := l.CheckDelete(actor); err != nil {
		return fail(span, err)
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return fail(span, err)
	}
	logger.Ctx(ctx).Info().Msgf("[Listing: %s] deleted by %s", id, actor.UserID)
	return nil
}

// MarkListingSold 只有发布者可以标记售出。
func (s *MarketService) MarkListingSold(ctx context.Context, actor auth.Principal, id string) (*ListingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.MarkListingSold")
	defer span.End()
	span.SetAttributes(attribute.String("produce_listing.id", id))

	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	readStatus := l.Status
	if err := l.MarkSold(actor, s.now()); err != nil {
		return nil, fail(span, err)
	}
	if err := s.listings.Update(ctx, l, readStatus); err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().Msgf("[Listing: %s] marked as sold", l.ID)
	return toListingResponse(l), nil
}

// ExpireListings 把超过 maxAge 仍在售的挂牌标记为过期，由运维命令触发。
func (s *MarketService) ExpireListings(ctx context.Context, maxAge time.Duration) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.ExpireListings")
	defer span.End()

	cutoff := s.now().Add(-maxAge)
	n, err := s.listings.ExpireBefore(ctx, cutoff)
	if err != nil {
		return 0, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("expired.count", n))
	logger.Ctx(ctx).Info().Time("cutoff", cutoff).Int64("count", n).Msg("expired stale produce listings")
	return n, nil
}
