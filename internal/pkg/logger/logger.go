// internal/pkg/logger/logger.go
package logger

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 zerolog，所有服务在 main 中调用一次。
func Init(serviceName, level string) {
	InitWithWriter(serviceName, level, os.Stdout)
}

// InitWithWriter 和 Init 相同，但允许指定输出（测试时写入 buffer）。
func InitWithWriter(serviceName, level string, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回与当前上下文绑定的 logger。
// 如果上下文中有活跃的 Span，会自动附带 trace_id / span_id，方便在 Jaeger 中对照。
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &zlog.Logger
	}

	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &zlog.Logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	enriched := l.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &enriched
}

// WithFields 把若干业务字段写入上下文 logger，后续 Ctx(ctx) 都会带上。
func WithFields(ctx context.Context, fields map[string]string) context.Context {
	lc := Ctx(ctx).With()
	for k, v := range fields {
		lc = lc.Str(k, v)
	}
	l := lc.Logger()
	return l.WithContext(ctx)
}

// Middleware 为每个 HTTP 请求注入 logger 并记录访问日志。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := zlog.Logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		ctx := l.WithContext(r.Context())

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		Ctx(ctx).Info().
			Int("status", rw.status).
			Dur("latency", time.Since(start)).
			Msg("http request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack 让 websocket 升级可以穿过中间件。
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
