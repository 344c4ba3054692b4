package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
	// failures 前几次写入返回 err，之后恢复
	failures int
	attempts int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.err != nil && (w.failures == 0 || w.attempts <= w.failures) {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

// fakeReader 依次返回预置消息，消息耗尽后阻塞直到 ctx 取消。
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func withPropagator(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp
}

func TestInjectExtractTraceContext(t *testing.T) {
	tp := withPropagator(t)
	ctx, span := tp.Tracer("t").Start(context.Background(), "produce")
	defer span.End()

	var headers []kafka.Header
	InjectTraceContext(ctx, &headers)
	require.NotEmpty(t, headers)
	assert.NotEmpty(t, HeaderValue(headers, "traceparent"))

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}

func TestKafkaHeaderCarrier_SetOverwrites(t *testing.T) {
	c := KafkaHeaderCarrier{}
	c.Set("a", "1")
	c.Set("a", "2")
	c.Set("b", "3")
	assert.Equal(t, "2", c.Get("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

func TestProduceMessage_AddsHeaders(t *testing.T) {
	tp := withPropagator(t)
	ctx, span := tp.Tracer("t").Start(context.Background(), "produce")
	defer span.End()

	w := &fakeWriter{}
	err := ProduceMessage(ctx, w, []byte("k"), []byte("v"), kafka.Header{Key: "x-type", Value: []byte("created")})
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "created", HeaderValue(msgs[0].Headers, "x-type"))
	assert.NotEmpty(t, HeaderValue(msgs[0].Headers, "traceparent"))
}

func TestFailureHandler_ForwardsWithDLTHeaders(t *testing.T) {
	dlt := &fakeWriter{}
	h := NewFailureHandler(dlt)

	msg := kafka.Message{Topic: "shipment-tracking-updates", Partition: 2, Offset: 41, Key: []byte("dr-1"), Value: []byte("{}")}
	require.NoError(t, h.Handle(context.Background(), msg, errors.New("boom")))

	out := dlt.written()
	require.Len(t, out, 1)
	assert.Equal(t, "shipment-tracking-updates", HeaderValue(out[0].Headers, HeaderOriginalTopic))
	assert.Equal(t, "2", HeaderValue(out[0].Headers, HeaderOriginalPartition))
	assert.Equal(t, "41", HeaderValue(out[0].Headers, HeaderOriginalOffset))
	assert.Equal(t, "boom", HeaderValue(out[0].Headers, HeaderExceptionMessage))
	assert.Equal(t, "*errors.errorString", HeaderValue(out[0].Headers, HeaderExceptionFqcn))
}

func TestFailureHandler_WriterError(t *testing.T) {
	h := NewFailureHandler(&fakeWriter{err: errors.New("broker down")})
	err := h.Handle(context.Background(), kafka.Message{Topic: "t"}, errors.New("boom"))
	assert.EqualError(t, err, "broker down")
}

func TestDLTTopic(t *testing.T) {
	assert.Equal(t, "delivery-request-events.DLT", DLTTopic("delivery-request-events"))
}

func TestConsumerAdapter_CommitsAndForwardsFailures(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "in", Offset: 1, Value: []byte("ok")},
		{Topic: "in", Offset: 2, Value: []byte("bad")},
		{Topic: "in", Offset: 3, Value: []byte("ok")},
	}}
	dlt := &fakeWriter{}

	var mu sync.Mutex
	var handled []string
	handler := func(_ context.Context, msg kafka.Message) error {
		mu.Lock()
		handled = append(handled, string(msg.Value))
		mu.Unlock()
		if string(msg.Value) == "bad" {
			return errors.New("cannot decode")
		}
		return nil
	}

	c := NewConsumerAdapter("test", reader, handler, NewFailureHandler(dlt))
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return reader.committedCount() == 3 }, time.Second, 5*time.Millisecond)
	c.Stop(context.Background())

	mu.Lock()
	assert.Equal(t, []string{"ok", "bad", "ok"}, handled)
	mu.Unlock()
	require.Len(t, dlt.written(), 1)
	assert.Equal(t, "bad", string(dlt.written()[0].Value))
	assert.True(t, reader.closed)
}

func (w *fakeWriter) attemptCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

func failOn(bad string) MessageHandler {
	return func(_ context.Context, msg kafka.Message) error {
		if string(msg.Value) == bad {
			return errors.New("cannot decode")
		}
		return nil
	}
}

func TestConsumerAdapter_DoesNotCommitWhenDLTWriteFails(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "in", Offset: 1, Value: []byte("bad")},
		{Topic: "in", Offset: 2, Value: []byte("ok")},
	}}
	dlt := &fakeWriter{err: errors.New("dlt broker down")}

	c := NewConsumerAdapter("test", reader, failOn("bad"), NewFailureHandler(dlt))
	c.SetRetryBackoff(time.Millisecond)
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return dlt.attemptCount() >= 3 }, time.Second, time.Millisecond)
	c.Stop(context.Background())

	assert.Empty(t, dlt.written())
	assert.Zero(t, reader.committedCount())
	reader.mu.Lock()
	assert.Len(t, reader.queue, 1, "the next message is not fetched while the failed one is unresolved")
	reader.mu.Unlock()
}

func TestConsumerAdapter_RetriesDLTUntilWritten(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "in", Offset: 1, Value: []byte("bad")},
		{Topic: "in", Offset: 2, Value: []byte("ok")},
	}}
	dlt := &fakeWriter{err: errors.New("dlt broker down"), failures: 2}

	c := NewConsumerAdapter("test", reader, failOn("bad"), NewFailureHandler(dlt))
	c.SetRetryBackoff(time.Millisecond)
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return reader.committedCount() == 2 }, time.Second, time.Millisecond)
	c.Stop(context.Background())

	require.Len(t, dlt.written(), 1)
	assert.Equal(t, "bad", string(dlt.written()[0].Value))
	assert.Equal(t, 3, dlt.attemptCount())
}

func TestLogDeadLetter_AlwaysNil(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: HeaderOriginalTopic, Value: []byte("in")}}}
	assert.NoError(t, LogDeadLetter(context.Background(), msg))
}
