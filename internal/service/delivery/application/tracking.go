package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/metrics"
	"agrinexus/internal/service/delivery/domain"
)

// TrackingService 处理承运商推送的物流更新
type TrackingService struct {
	requests  domain.RequestRepository
	shipments domain.ShipmentRepository
	tracer    trace.Tracer
	now       func() time.Time
}

func NewTrackingService(requests domain.RequestRepository, shipments domain.ShipmentRepository, tracer trace.Tracer) *TrackingService {
	return &TrackingService{
		requests:  requests,
		shipments: shipments,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest 应用一条物流推送。
// 第一条推送创建物流记录，之后按单调规则推进；旧消息和终态之后的消息被忽略，不视为错误。
// 返回的错误表示消息无法处理，由调用方转入死信。
func (t *TrackingService) Ingest(ctx context.Context, u domain.ShipmentUpdate) (domain.UpdateResult, error) {
	ctx, span := t.tracer.Start(ctx, "service.IngestShipmentUpdate")
	defer span.End()
	span.SetAttributes(
		attribute.String("delivery_request.id", u.DeliveryRequestID),
		attribute.String("shipment.status", string(u.Status)),
	)

	if err := u.Validate(); err != nil {
		metrics.ShipmentUpdatesTotal.WithLabelValues("rejected").Inc()
		return "", fail(span, err)
	}

	result, err := t.ingest(ctx, u)
	if errors.Is(err, domain.ErrShipmentExists) {
		// 并发创建，重新读取后按更新处理
		result, err = t.ingest(ctx, u)
	}
	if err != nil {
		metrics.ShipmentUpdatesTotal.WithLabelValues("rejected").Inc()
		return "", fail(span, err)
	}

	metrics.ShipmentUpdatesTotal.WithLabelValues(string(result)).Inc()
	span.SetAttributes(attribute.String("shipment.result", string(result)))
	logger.Ctx(ctx).Info().Msgf("[Request: %s] shipment update %s: %s", u.DeliveryRequestID, u.Status, result)
	return result, nil
}

func (t *TrackingService) ingest(ctx context.Context, u domain.ShipmentUpdate) (domain.UpdateResult, error) {
	shipment, err := t.shipments.FindByRequestID(ctx, u.DeliveryRequestID)
	if errors.Is(err, domain.ErrShipmentNotFound) {
		return t.create(ctx, u)
	}
	if err != nil {
		return "", err
	}

	from := shipment.Status
	if shipment.Advance(u, t.now()) == domain.UpdateIgnored {
		return domain.UpdateIgnored, nil
	}
	if err := t.shipments.Update(ctx, shipment, from); err != nil {
		return "", err
	}
	return domain.UpdateApplied, nil
}

func (t *TrackingService) create(ctx context.Context, u domain.ShipmentUpdate) (domain.UpdateResult, error) {
	req, err := t.requests.FindByID(ctx, u.DeliveryRequestID)
	if err != nil {
		return "", err
	}
	if !domain.CanShip(req.Status) {
		return "", domain.ErrInvalidTransition.Withf("cannot ship a %s request", req.Status)
	}

	now := t.now()
	shipment := &domain.DeliveryShipment{
		ID:                uuid.NewString(),
		DeliveryRequestID: req.ID,
		Status:            domain.ShipmentCreated,
		LastKnownLocation: u.Location,
		Carrier:           u.Carrier,
		TrackingNumber:    u.TrackingNumber,
		UpdatedAt:         now,
	}
	shipment.Advance(u, now)
	if err := t.shipments.Create(ctx, shipment); err != nil {
		return "", err
	}
	return domain.UpdateCreated, nil
}
