// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/nacos"
	"agrinexus/internal/pkg/tracing"
)

// Worker 是随服务一起启动的后台任务（Kafka 消费者等），ctx 取消时应返回。
type Worker func(ctx context.Context) error

// AppCtx 是注册路由时可用的依赖。
type AppCtx struct {
	Config *Config
	// Router 已挂载限流中间件，业务路由都注册在这里
	Router chi.Router
	Tracer trace.Tracer
	Nacos  *nacos.Client

	workers   []Worker
	closers   []func(context.Context) error
	reloaders []func(*Config)
}

// AddWorker 注册一个后台任务，与 HTTP 服务共享生命周期。
func (a *AppCtx) AddWorker(w Worker) {
	a.workers = append(a.workers, w)
}

// OnReload 注册配置热更新回调，只在新配置校验通过后调用。
func (a *AppCtx) OnReload(fn func(*Config)) {
	a.reloaders = append(a.reloaders, fn)
}

// OnShutdown 注册关停时的清理函数，按后进先出顺序执行。
func (a *AppCtx) OnShutdown(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由和后台任务
	RegisterHandlers func(appCtx *AppCtx) error
}

// ConfigPath 返回配置文件路径，APP_CONFIG 为空时只使用默认值和环境变量。
func ConfigPath() string {
	return getEnv("APP_CONFIG", "configs/config.yaml")
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, info); err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Str("service", info.ServiceName).Msg("service exited with error")
	}
}

// Run 启动服务并阻塞到 ctx 取消或任一后台任务失败。
func Run(ctx context.Context, info AppInfo) error {
	path := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	SetCurrentConfig(cfg)
	logger.Init(info.ServiceName, cfg.App.LogLevel)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(ctx, tracing.Options{
		ServiceName: info.ServiceName,
		Exporter:    cfg.Infra.Tracing.Exporter,
		Endpoint:    cfg.Infra.Tracing.Endpoint,
		SampleRatio: cfg.Infra.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	appCtx := &AppCtx{Config: cfg, Tracer: tp.Tracer(info.ServiceName)}

	// 2. 服务注册（可选）
	var ip string
	if cfg.Infra.Nacos.Enabled {
		nc, err := nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return fmt.Errorf("failed to initialize nacos client: %w", err)
		}
		if ip, err = outboundIP(); err != nil {
			return fmt.Errorf("failed to get outbound IP address: %w", err)
		}
		if err := nc.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
		appCtx.Nacos = nc
	}

	// 3. 路由与业务依赖
	root := NewRouter(cfg)
	appCtx.Router = root.With(httprate.LimitByIP(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow))
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			return fmt.Errorf("failed to register handlers: %w", err)
		}
	}

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(info.Port),
		Handler: otelhttp.NewHandler(root, info.ServiceName),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Ctx(gctx).Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
		return nil
	})
	if path != "" {
		g.Go(func() error {
			return WatchConfig(gctx, path, func(c *Config) {
				for _, fn := range appCtx.reloaders {
					fn(c)
				}
			})
		})
	}
	for _, w := range appCtx.workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}

	// 4. 优雅关停，按顺序执行清理操作
	g.Go(func() error {
		<-gctx.Done()
		log := logger.Ctx(context.Background())
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// a. 先从 Nacos 注销，停止接收新流量
		if appCtx.Nacos != nil {
			if err := appCtx.Nacos.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
			appCtx.Nacos.Close()
		}
		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		// c. 业务资源（后进先出）
		for i := len(appCtx.closers) - 1; i >= 0; i-- {
			if err := appCtx.closers[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error during shutdown hook")
			}
		}
		// d. 最后关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
		return nil
	})

	return g.Wait()
}

// NewRouter 创建带公共中间件的根路由，并挂载 /healthz 与 /metrics。
func NewRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// outboundIP 通过一次 UDP "连接" 找到本机对外的地址，不会真正发包。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
