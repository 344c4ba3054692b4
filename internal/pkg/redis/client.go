// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"agrinexus/internal/pkg/logger"
)

// Client 封装了 go-redis 的 UniversalClient，并管理 Lua 脚本。
// 单地址时是普通客户端，多地址时自动切换为集群客户端。
type Client struct {
	client  goredis.UniversalClient
	scripts map[string]*goredis.Script
	mu      sync.RWMutex
}

// NewClient 根据逗号分隔的地址创建客户端并做一次连通性检查。
func NewClient(addrs string) (*Client, error) {
	list := strings.Split(addrs, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	uc := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        list,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.Ping(ctx).Err(); err != nil {
		_ = uc.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Ctx(ctx).Info().Strs("addrs", list).Msg("✅ Successfully connected to Redis.")
	return NewClientFrom(uc), nil
}

// NewClientFrom 包装一个已经存在的客户端（测试时传入指向 miniredis 的客户端）。
func NewClientFrom(uc goredis.UniversalClient) *Client {
	return &Client{
		client:  uc,
		scripts: make(map[string]*goredis.Script),
	}
}

// GetClient 返回底层客户端，用于 pipeline 等高级操作。
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

// LoadScriptFromContent 注册一个 Lua 脚本并预加载到服务器。
func (c *Client) LoadScriptFromContent(name, content string) error {
	script := goredis.NewScript(content)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := script.Load(ctx, c.client).Err(); err != nil {
		return fmt.Errorf("failed to load script %s: %w", name, err)
	}

	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 执行已注册的脚本；脚本缓存丢失时 go-redis 会自动回退到 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %s not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

// Close 关闭连接池。
func (c *Client) Close() error {
	return c.client.Close()
}
