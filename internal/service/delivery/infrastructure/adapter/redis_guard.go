package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/redis"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

const guardReleaseScriptName = "delivery_guard_release"

// 只删除自己写入的 token，避免锁过期后误删其他请求持有的锁
var guardReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisMutationGuard 是 port.MutationGuard 的 Redis 实现，基于 SET NX PX。
type RedisMutationGuard struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisMutationGuard 创建适配器并加载释放脚本。
// ttl 是持有上限，进程崩溃时锁也会自动过期。
func NewRedisMutationGuard(redisClient *redis.Client, ttl time.Duration) (*RedisMutationGuard, error) {
	if err := redisClient.LoadScriptFromContent(guardReleaseScriptName, guardReleaseScript); err != nil {
		return nil, errors.Wrap(err, "failed to load guard release script")
	}
	return &RedisMutationGuard{redisClient: redisClient, ttl: ttl}, nil
}

// GuardKey 返回请求对应的锁 key
func GuardKey(requestID string) string {
	return "delivery:guard:" + requestID
}

func (g *RedisMutationGuard) Acquire(ctx context.Context, requestID string) (port.ReleaseFunc, error) {
	key := GuardKey(requestID)
	token := uuid.NewString()

	ok, err := g.redisClient.GetClient().SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire guard %s", key)
	}
	if !ok {
		return nil, domain.ErrMutationInFlight
	}

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			if _, err := g.redisClient.RunScript(ctx, guardReleaseScriptName, []string{key}, token); err != nil {
				// 释放失败时锁会在 ttl 后过期
				logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to release delivery guard")
			}
		})
	}, nil
}
