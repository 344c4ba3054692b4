// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共用的配置结构，按需读取其中的段落。
type Config struct {
	App          AppConfig          `yaml:"app"`
	Infra        InfraConfig        `yaml:"infra"`
	Auth         AuthConfig         `yaml:"auth"`
	HTTP         HTTPConfig         `yaml:"http"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Market       MarketConfig       `yaml:"market"`
	Notification NotificationConfig `yaml:"notification"`
}

type AppConfig struct {
	Env          string       `yaml:"env"`
	LogLevel     string       `yaml:"log_level"`
	FeatureFlags FeatureFlags `yaml:"feature_flags"`
}

// FeatureFlags 支持热更新，业务代码每次都应通过 GetCurrentConfig() 读取。
type FeatureFlags struct {
	EnableQuantityWarning bool `yaml:"enable_quantity_warning"`
	EnableShareLinks      bool `yaml:"enable_share_links"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	S3        S3Config        `yaml:"s3"`
}

type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
}

// BrokerList 把逗号分隔的 broker 地址拆成切片。
func (k KafkaConfig) BrokerList() []string {
	return splitList(k.Brokers)
}

type TracingConfig struct {
	Exporter    string  `yaml:"exporter"` // jaeger | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// ServerList 把逗号分隔的 zk 地址拆成切片。
func (z ZookeeperConfig) ServerList() []string {
	return splitList(z.Servers)
}

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
	Prefix        string `yaml:"prefix"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type HTTPConfig struct {
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DeliveryConfig struct {
	GuardBackend string        `yaml:"guard_backend"` // redis | zookeeper
	GuardTTL     time.Duration `yaml:"guard_ttl"`
	ListCacheTTL time.Duration `yaml:"list_cache_ttl"`
}

// MaxUploadBytes 是上传请求体的硬上限，max_image_bytes 不能超过它
const MaxUploadBytes = 32 << 20

type MarketConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes"`
	// ListingMaxAge 超过该时长仍在售的挂牌会被标记为 expired，0 表示不清理
	ListingMaxAge time.Duration `yaml:"listing_max_age"`
}

type NotificationConfig struct {
	WebhookURL    string  `yaml:"webhook_url"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// DefaultConfig 返回本地开发可直接使用的默认值。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:      "dev",
			LogLevel: "info",
			FeatureFlags: FeatureFlags{
				EnableQuantityWarning: true,
				EnableShareLinks:      true,
			},
		},
		Infra: InfraConfig{
			MySQL:     MySQLConfig{DSN: "root:root@tcp(localhost:3306)/agrinexus?charset=utf8mb4", MaxOpenConns: 20, MaxIdleConns: 5},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Kafka:     KafkaConfig{Brokers: "localhost:9092"},
			Tracing:   TracingConfig{Exporter: "jaeger", Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second},
			S3:        S3Config{Bucket: "agrinexus-media", Region: "ap-south-1", Prefix: "market-cards/"},
		},
		Auth: AuthConfig{Issuer: "agrinexus"},
		HTTP: HTTPConfig{RateLimit: 600, RateWindow: time.Minute, ShutdownTimeout: 10 * time.Second},
		Delivery: DeliveryConfig{
			GuardBackend: "redis",
			GuardTTL:     10 * time.Second,
			ListCacheTTL: time.Minute,
		},
		Market:       MarketConfig{MaxImageBytes: 5 << 20, ListingMaxAge: 30 * 24 * time.Hour},
		Notification: NotificationConfig{RatePerSecond: 5, Burst: 5},
	}
}

// LoadConfig 读取 YAML 文件（path 为空时只用默认值），然后应用环境变量覆盖并校验。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查必须的配置项。
func (c *Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	switch c.Delivery.GuardBackend {
	case "redis", "zookeeper":
	default:
		problems = append(problems, fmt.Sprintf("delivery.guard_backend must be redis or zookeeper, got %q", c.Delivery.GuardBackend))
	}
	if c.Delivery.GuardTTL <= 0 {
		problems = append(problems, "delivery.guard_ttl must be positive")
	}
	// 缓存 TTL 以秒为单位写入 redis
	if c.Delivery.ListCacheTTL < time.Second {
		problems = append(problems, "delivery.list_cache_ttl must be at least 1s")
	}
	if c.Market.MaxImageBytes <= 0 || c.Market.MaxImageBytes > MaxUploadBytes {
		problems = append(problems, fmt.Sprintf("market.max_image_bytes must be in (0, %d]", MaxUploadBytes))
	}
	if c.Notification.RatePerSecond <= 0 {
		problems = append(problems, "notification.rate_per_second must be positive")
	}
	if c.Notification.Burst <= 0 {
		problems = append(problems, "notification.burst must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnv 环境变量优先于文件，便于容器部署。
func applyEnv(c *Config) {
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	c.Infra.MySQL.DSN = getEnv("MYSQL_DSN", c.Infra.MySQL.DSN)
	c.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", c.Infra.Redis.Addrs)
	c.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", c.Infra.Kafka.Brokers)
	c.Infra.Tracing.Exporter = getEnv("TRACE_EXPORTER", c.Infra.Tracing.Exporter)
	c.Infra.Tracing.Endpoint = getEnv("TRACE_ENDPOINT", c.Infra.Tracing.Endpoint)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Infra.Nacos.Enabled = getEnvBool("NACOS_ENABLED", c.Infra.Nacos.Enabled)
	c.Infra.Zookeeper.Servers = getEnv("ZK_SERVERS", c.Infra.Zookeeper.Servers)
	c.Infra.S3.Bucket = getEnv("S3_BUCKET", c.Infra.S3.Bucket)
	c.Infra.S3.Endpoint = getEnv("S3_ENDPOINT", c.Infra.S3.Endpoint)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Delivery.GuardBackend = getEnv("DELIVERY_GUARD_BACKEND", c.Delivery.GuardBackend)
	c.Notification.WebhookURL = getEnv("NOTIFICATION_WEBHOOK_URL", c.Notification.WebhookURL)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置快照。调用方不能修改返回值。
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	return DefaultConfig()
}

// SetCurrentConfig 原子替换当前配置。
func SetCurrentConfig(c *Config) {
	currentConfig.Store(c)
}
