package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/metrics"
	"agrinexus/internal/pkg/tracing"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

// Settings 是可热更新的业务开关
type Settings struct {
	EnableQuantityWarning bool
}

// DeliveryService 定义了配送请求的所有业务用例
type DeliveryService struct {
	requests  domain.RequestRepository
	shipments domain.ShipmentRepository
	catalog   port.CardCatalog
	guard     port.MutationGuard
	cache     port.RequestListCache
	publisher port.EventPublisher
	settings  func() Settings
	tracer    trace.Tracer
	now       func() time.Time
}

// Deps 汇总 DeliveryService 的依赖，全部必填
type Deps struct {
	Requests  domain.RequestRepository
	Shipments domain.ShipmentRepository
	Catalog   port.CardCatalog
	Guard     port.MutationGuard
	Cache     port.RequestListCache
	Publisher port.EventPublisher
	Settings  func() Settings
	Tracer    trace.Tracer
}

// NewDeliveryService 创建一个新的配送服务实例
func NewDeliveryService(d Deps) *DeliveryService {
	return &DeliveryService{
		requests:  d.Requests,
		shipments: d.Shipments,
		catalog:   d.Catalog,
		guard:     d.Guard,
		cache:     d.Cache,
		publisher: d.Publisher,
		settings:  d.Settings,
		tracer:    d.Tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// CreateRequest 买家针对一张在售卡片发起配送请求。
// 请求数量超过可用数量时仍然创建，只在响应中附带警告。
func (s *DeliveryService) CreateRequest(ctx context.Context, actor auth.Principal, in *CreateRequestInput) (*CreateRequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateDeliveryRequest")
	defer span.End()
	span.SetAttributes(attribute.String("market_card.id", in.MarketCardID), attribute.String("buyer.id", actor.UserID))

	if strings.TrimSpace(in.MarketCardID) == "" {
		return nil, fail(span, apperr.Validation("market_card_id is required"))
	}
	card, err := s.catalog.GetCard(ctx, in.MarketCardID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !card.IsActive {
		return nil, fail(span, domain.ErrCardInactive)
	}

	req, err := domain.NewDeliveryRequest(uuid.NewString(), card.ID, actor.UserID, card.OwnerID,
		in.RequestedQuantity, in.RequestedPrice, in.DeliveryAddress, in.BuyerNotes, s.now())
	if err != nil {
		return nil, fail(span, err)
	}

	var warnings []string
	if s.settings().EnableQuantityWarning && req.RequestedQuantity > card.AvailableQuantity {
		warnings = append(warnings, domain.WarningQuantityExceedsAvailable)
		span.AddEvent("requested quantity exceeds available", trace.WithAttributes(
			attribute.Float64("requested", req.RequestedQuantity),
			attribute.Float64("available", card.AvailableQuantity)))
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("delivery_request.id", req.ID))
	logger.Ctx(ctx).Info().Msgf("[Request: %s] created by buyer %s on card %s", req.ID, req.BuyerID, req.MarketCardID)

	s.afterCommit(ctx, req, domain.DeliveryRequestEvent{Type: domain.EventCreated, NewStatus: req.Status, Note: req.BuyerNotes})
	return &CreateRequestResponse{Request: toRequestResponse(req), Warnings: warnings}, nil
}

// GetRequest 只有买卖双方可以查看。
func (s *DeliveryService) GetRequest(ctx context.Context, actor auth.Principal, id string) (*RequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetDeliveryRequest")
	defer span.End()
	span.SetAttributes(attribute.String("delivery_request.id", id))

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := req.CheckView(actor.UserID); err != nil {
		return nil, fail(span, err)
	}
	return toRequestResponse(req), nil
}

// ListBuyerRequests 买家视角的请求列表，最新的在前
func (s *DeliveryService) ListBuyerRequests(ctx context.Context, actor auth.Principal, status domain.Status) ([]*RequestResponse, error) {
	return s.list(ctx, port.RoleBuyer, actor.UserID, status)
}

// ListSellerRequests 卖家视角的请求列表，最新的在前
func (s *DeliveryService) ListSellerRequests(ctx context.Context, actor auth.Principal, status domain.Status) ([]*RequestResponse, error) {
	return s.list(ctx, port.RoleSeller, actor.UserID, status)
}

func (s *DeliveryService) list(ctx context.Context, role port.Role, userID string, status domain.Status) ([]*RequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListDeliveryRequests")
	defer span.End()
	span.SetAttributes(attribute.String("role", string(role)), attribute.String("status", string(status)))

	if status != "" && !status.IsValid() {
		return nil, fail(span, apperr.Validationf("unknown status %q", status))
	}

	list, hit, err := s.cache.Get(ctx, role, userID, status)
	if err != nil {
		// 缓存故障降级为直接查库
		logger.Ctx(ctx).Warn().Err(err).Msg("request list cache read failed")
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if !hit {
		// 代数在读库之前取，读库期间发生的失效会让回填失效
		gen, genErr := s.cache.Generation(ctx, role, userID)
		if genErr != nil {
			logger.Ctx(ctx).Warn().Err(genErr).Msg("request list generation read failed, skipping cache fill")
		}
		if role == port.RoleBuyer {
			list, err = s.requests.ListByBuyer(ctx, userID, status)
		} else {
			list, err = s.requests.ListBySeller(ctx, userID, status)
		}
		if err != nil {
			return nil, fail(span, err)
		}
		if genErr == nil {
			if err := s.cache.Set(ctx, role, userID, status, gen, list); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("request list cache write failed")
			}
		}
	}

	out := make([]*RequestResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toRequestResponse(r))
	}
	return out, nil
}

// Accept 卖家接受
func (s *DeliveryService) Accept(ctx context.Context, actor auth.Principal, id, note string) (*RequestResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionAccept, note)
}

// Reject 卖家拒绝
func (s *DeliveryService) Reject(ctx context.Context, actor auth.Principal, id, note string) (*RequestResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionReject, note)
}

// Complete 卖家确认完成，只能从 accepted 进入
func (s *DeliveryService) Complete(ctx context.Context, actor auth.Principal, id, note string) (*RequestResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionComplete, note)
}

// Cancel 买家在 pending 状态下取消
func (s *DeliveryService) Cancel(ctx context.Context, actor auth.Principal, id, note string) (*RequestResponse, error) {
	return s.transition(ctx, actor, id, domain.ActionCancel, note)
}

// transition 的顺序：在途保护 -> 读取 -> 领域校验 -> 条件更新 -> 清缓存 -> 发布事件。
func (s *DeliveryService) transition(ctx context.Context, actor auth.Principal, id string, action domain.Action, note string) (*RequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.DeliveryRequest."+string(action))
	defer span.End()
	span.SetAttributes(attribute.String("delivery_request.id", id), attribute.String("actor.id", actor.UserID))

	release, err := s.guard.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMutationInFlight) {
			metrics.DeliveryGuardRejectionsTotal.Inc()
			logger.Ctx(ctx).Warn().Msgf("[Request: %s] %s rejected, another mutation is in flight", id, action)
		}
		return nil, fail(span, err)
	}
	// 释放不受请求取消影响
	defer release(context.WithoutCancel(ctx))

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	from, err := req.Apply(action, actor.UserID, note, s.now())
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.requests.UpdateStatus(ctx, req, from); err != nil {
		return nil, fail(span, err)
	}

	metrics.DeliveryTransitionsTotal.WithLabelValues(string(from), string(req.Status)).Inc()
	span.SetAttributes(attribute.String("status.from", string(from)), attribute.String("status.to", string(req.Status)))
	logger.Ctx(ctx).Info().Msgf("[Request: %s] %s -> %s by %s", req.ID, from, req.Status, actor.UserID)

	s.afterCommit(ctx, req, domain.DeliveryRequestEvent{Type: domain.EventStatusChanged, OldStatus: from, NewStatus: req.Status, Note: note})
	return toRequestResponse(req), nil
}

// afterCommit 写入成功后先清缓存再发事件，收到事件的客户端重新拉取时不会读到旧列表。
// 两步失败都只记录，不回滚已提交的变更。
func (s *DeliveryService) afterCommit(ctx context.Context, req *domain.DeliveryRequest, evt domain.DeliveryRequestEvent) {
	span := trace.SpanFromContext(ctx)

	if err := s.cache.Invalidate(ctx, req.BuyerID, req.SellerID); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msgf("[Request: %s] failed to invalidate list cache", req.ID)
	}

	evt.EventID = uuid.NewString()
	evt.RequestID = req.ID
	evt.MarketCardID = req.MarketCardID
	evt.BuyerID = req.BuyerID
	evt.SellerID = req.SellerID
	evt.OccurredAt = req.UpdatedAt
	evt.TraceID = tracing.GetTraceIDFromContext(ctx)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msgf("[Request: %s] failed to publish %s event", req.ID, evt.Type)
	}
}

// GetShipment 买卖双方查看物流，承运商尚未创建时返回 ErrShipmentNotFound
func (s *DeliveryService) GetShipment(ctx context.Context, actor auth.Principal, requestID string) (*ShipmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetShipment")
	defer span.End()
	span.SetAttributes(attribute.String("delivery_request.id", requestID))

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := req.CheckView(actor.UserID); err != nil {
		return nil, fail(span, err)
	}
	shipment, err := s.shipments.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, fail(span, err)
	}
	return toShipmentResponse(shipment), nil
}
