package notification

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"agrinexus/internal/pkg/httpclient"
	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/metrics"
	"agrinexus/internal/service/delivery/domain"
)

// ConsumerGroup 通知服务的消费组
const ConsumerGroup = "notification-group"

// Sender 发送一条短信
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// WebhookSender 以表单 POST 调用短信网关
type WebhookSender struct {
	client *httpclient.Client
	url    string
}

func NewWebhookSender(client *httpclient.Client, webhookURL string) *WebhookSender {
	return &WebhookSender{client: client, url: webhookURL}
}

func (s *WebhookSender) Send(ctx context.Context, to, message string) error {
	return s.client.PostForm(ctx, s.url, url.Values{"to": {to}, "message": {message}})
}

// Service 消费配送事件并发送通知，发送失败只记录不重试
type Service struct {
	sender  Sender
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// NewService perSecond / burst 控制对短信网关的调用速率
func NewService(sender Sender, perSecond float64, burst int, tracer trace.Tracer) *Service {
	return &Service{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		tracer:  tracer,
	}
}

// SetRate 配置热更新时调整限流
func (s *Service) SetRate(perSecond float64, burst int) {
	s.limiter.SetLimit(rate.Limit(perSecond))
	s.limiter.SetBurst(burst)
}

// HandleMessage 实现 mq.MessageHandler。
// 只有消息无法解码时返回错误。
func (s *Service) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := s.tracer.Start(ctx, "notification-service.ProcessEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		))
	defer span.End()

	var evt domain.DeliveryRequestEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		err = errors.Wrap(err, "decode delivery request event")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("delivery_request.id", evt.RequestID), attribute.String("event.type", string(evt.Type)))

	n, ok := Compose(evt)
	if !ok || n.To == "" {
		metrics.NotificationsSentTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	s.Deliver(ctx, n)
	return nil
}

// Deliver 等待限流令牌后发送
func (s *Service) Deliver(ctx context.Context, n Notification) {
	span := trace.SpanFromContext(ctx)
	if err := s.limiter.Wait(ctx); err != nil {
		// ctx 取消或等待时间超过截止时间
		metrics.NotificationsSentTotal.WithLabelValues("failed").Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("to", n.To).Msg("notification dropped while waiting for rate limiter")
		return
	}
	if err := s.sender.Send(ctx, n.To, n.Message); err != nil {
		span.RecordError(err)
		metrics.NotificationsSentTotal.WithLabelValues("failed").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("to", n.To).Msg("failed to send notification")
		return
	}
	metrics.NotificationsSentTotal.WithLabelValues("sent").Inc()
	logger.Ctx(ctx).Info().Str("to", n.To).Msgf("Sent notification to user %s: %s", n.To, n.Message)
}
