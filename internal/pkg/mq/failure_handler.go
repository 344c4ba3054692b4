// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"agrinexus/internal/pkg/logger"
)

// 死信消息携带的头，字段名与 Spring Kafka 的 DLT 约定保持一致，方便运维工具复用。
const (
	HeaderOriginalTopic     = "kafka_dlt-original-topic"
	HeaderOriginalPartition = "kafka_dlt-original-partition"
	HeaderOriginalOffset    = "kafka_dlt-original-offset"
	HeaderExceptionFqcn     = "kafka_dlt-exception-fqcn"
	HeaderExceptionMessage  = "kafka_dlt-exception-message"
)

// DLTTopic 返回某个主题对应的死信主题名。
func DLTTopic(topic string) string {
	return topic + ".DLT"
}

// FailureHandler 把处理失败的消息转投到死信主题。
type FailureHandler struct {
	dltWriter MessageWriter
}

func NewFailureHandler(dltWriter MessageWriter) *FailureHandler {
	return &FailureHandler{dltWriter: dltWriter}
}

// Handle 转投失败消息。转投本身失败时返回错误，调用方不应提交 offset。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, processingErr error) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", processingErr))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(processingErr.Error())},
	)

	err := h.dltWriter.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("original_topic", msg.Topic).
			Int64("original_offset", msg.Offset).
			Msg("CRITICAL: failed to forward message to DLT")
		return err
	}

	logger.Ctx(ctx).Warn().Err(processingErr).
		Str("original_topic", msg.Topic).
		Int64("original_offset", msg.Offset).
		Msg("message forwarded to DLT")
	return nil
}

// LogDeadLetter 是死信主题的处理函数：只做结构化记录，总是返回 nil 以便提交 offset。
func LogDeadLetter(ctx context.Context, msg kafka.Message) error {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", HeaderValue(msg.Headers, HeaderOriginalTopic)).
		Str("original_partition", HeaderValue(msg.Headers, HeaderOriginalPartition)).
		Str("original_offset", HeaderValue(msg.Headers, HeaderOriginalOffset)).
		Str("exception_fqcn", HeaderValue(msg.Headers, HeaderExceptionFqcn)).
		Str("exception_message", HeaderValue(msg.Headers, HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
	return nil
}
