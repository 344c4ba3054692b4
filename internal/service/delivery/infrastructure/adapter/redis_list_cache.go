package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"agrinexus/internal/pkg/redis"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

const (
	allStatuses = "all"

	// 代数 key 的存活时间远大于列表 TTL 和一次读库的耗时
	generationTTL = 24 * time.Hour

	listFillScriptName = "delivery_list_fill"
	// KEYS[1] 代数 KEYS[2] 列表 hash；ARGV: 期望代数, field, 数据, ttl 秒
	listFillScript = `
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
redis.call("EXPIRE", KEYS[2], ARGV[4])
return 1
`
)

// RedisRequestListCache 每个用户视角一个 hash，field 是状态过滤条件。
// 失效时递增代数并删除整个 hash；回填由 Lua 脚本按代数做条件写入。
type RedisRequestListCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisRequestListCache(redisClient *redis.Client, ttl time.Duration) (*RedisRequestListCache, error) {
	if err := redisClient.LoadScriptFromContent(listFillScriptName, listFillScript); err != nil {
		return nil, errors.Wrap(err, "failed to load list cache fill script")
	}
	return &RedisRequestListCache{redisClient: redisClient, ttl: ttl}, nil
}

// ListKey delivery:list:{<role>:<user>}，花括号保证与代数 key 落在同一槽位
func ListKey(role port.Role, userID string) string {
	return "delivery:list:{" + string(role) + ":" + userID + "}"
}

// GenerationKey delivery:listgen:{<role>:<user>}
func GenerationKey(role port.Role, userID string) string {
	return "delivery:listgen:{" + string(role) + ":" + userID + "}"
}

func field(status domain.Status) string {
	if status == "" {
		return allStatuses
	}
	return string(status)
}

func (c *RedisRequestListCache) Get(ctx context.Context, role port.Role, userID string, status domain.Status) ([]*domain.DeliveryRequest, bool, error) {
	raw, err := c.redisClient.GetClient().HGet(ctx, ListKey(role, userID), field(status)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read request list cache")
	}
	var list []*domain.DeliveryRequest
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, errors.Wrap(err, "decode request list cache")
	}
	return list, true, nil
}

func (c *RedisRequestListCache) Generation(ctx context.Context, role port.Role, userID string) (int64, error) {
	gen, err := c.redisClient.GetClient().Get(ctx, GenerationKey(role, userID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, errors.Wrap(err, "read request list generation")
}

func (c *RedisRequestListCache) Set(ctx context.Context, role port.Role, userID string, status domain.Status, gen int64, list []*domain.DeliveryRequest) error {
	if list == nil {
		list = []*domain.DeliveryRequest{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "encode request list cache")
	}
	_, err = c.redisClient.RunScript(ctx, listFillScriptName,
		[]string{GenerationKey(role, userID), ListKey(role, userID)},
		gen, field(status), raw, int64(c.ttl/time.Second))
	return errors.Wrap(err, "write request list cache")
}

func (c *RedisRequestListCache) Invalidate(ctx context.Context, buyerID, sellerID string) error {
	// 买家和卖家的 key 可能落在不同槽位，只用普通 pipeline；
	// 先递增代数再删除，中间插入的回填会因为代数变化而放弃
	_, err := c.redisClient.GetClient().Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, v := range []struct {
			role port.Role
			user string
		}{{port.RoleBuyer, buyerID}, {port.RoleSeller, sellerID}} {
			genKey := GenerationKey(v.role, v.user)
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
			pipe.Del(ctx, ListKey(v.role, v.user))
		}
		return nil
	})
	return errors.Wrap(err, "invalidate request list cache")
}
