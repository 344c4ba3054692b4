// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"agrinexus/internal/pkg/logger"
)

// MessageHandler 处理一条已经恢复了追踪上下文的消息。
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// ConsumerAdapter 是一个驱动适配器：循环拉取消息，交给 handler 处理，然后提交 offset。
// 处理失败时交给 FailureHandler（如果配置了），无论成功或失败都会提交。
type ConsumerAdapter struct {
	name           string
	reader         MessageReader
	handler        MessageHandler
	failureHandler *FailureHandler
	retryBackoff   time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewConsumerAdapter 创建一个消费者适配器，failureHandler 可以为 nil。
func NewConsumerAdapter(name string, reader MessageReader, handler MessageHandler, failureHandler *FailureHandler) *ConsumerAdapter {
	return &ConsumerAdapter{
		name:           name,
		reader:         reader,
		handler:        handler,
		failureHandler: failureHandler,
		retryBackoff:   time.Second,
	}
}

// SetRetryBackoff 设置拉取失败后的等待时间。
func (a *ConsumerAdapter) SetRetryBackoff(d time.Duration) {
	a.retryBackoff = d
}

// Start 启动消费 goroutine，立即返回。
func (a *ConsumerAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("consumer already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop(runCtx)
	}()
	return nil
}

func (a *ConsumerAdapter) loop(ctx context.Context) {
	logger.Ctx(ctx).Info().Str("consumer", a.name).Msg("✅ Kafka Consumer Adapter started.")
	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			// 上下文取消导致的错误，正常退出
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("consumer", a.name).Msg("🛑 Kafka Consumer Adapter shutting down.")
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", a.name).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.retryBackoff): // 避免快速失败循环
			}
			continue
		}

		msgCtx := ExtractTraceContext(ctx, msg.Headers)
		if procErr := a.handler(msgCtx, msg); procErr != nil {
			logger.Ctx(msgCtx).Error().Err(procErr).
				Str("consumer", a.name).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("failed to process message")
			// 死信没有写成功就不提交，避免消息既没处理也没留档
			if a.failureHandler != nil && !a.deadLetter(msgCtx, msg, procErr) {
				logger.Ctx(ctx).Warn().Str("consumer", a.name).Int64("offset", msg.Offset).
					Msg("stopping before commit, message will be redelivered")
				return
			}
		}

		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", a.name).Msg("failed to commit messages")
		}
	}
}

// deadLetter 重试转投死信直到成功；ctx 取消时返回 false。
// kafka-go 的 reader 不会重新投递未提交的消息，所以只能原地重试，而不是跳过后再拉取。
func (a *ConsumerAdapter) deadLetter(ctx context.Context, msg kafka.Message, procErr error) bool {
	for {
		if err := a.failureHandler.Handle(ctx, msg, procErr); err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(a.retryBackoff):
		}
	}
}

// Stop 优雅地停止消费者并关闭 reader。
func (a *ConsumerAdapter) Stop(ctx context.Context) {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	if err := a.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("consumer", a.name).Msg("failed to close reader")
	}
	logger.Ctx(ctx).Info().Str("consumer", a.name).Msg("✅ Kafka Consumer Adapter stopped.")
}

// Run 启动消费者并阻塞到 ctx 取消，然后优雅停止，可直接作为 bootstrap.Worker。
func (a *ConsumerAdapter) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.Stop(context.Background())
	return nil
}
