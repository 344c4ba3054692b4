// Package session 记录用户当前连接在哪个推送网关节点上。
package session

import (
	"context"
	"fmt"
	"time"

	"agrinexus/internal/pkg/redis"
)

const (
	keyPrefix = "push:session:"

	releaseScriptName = "session_release"
	// 只有值仍然是本节点时才删除，避免误删用户在其他节点上的新会话
	releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
)

// Manager 维护 push:session:<user> = nodeID。
type Manager struct {
	client *redis.Client
	nodeID string
	ttl    time.Duration
}

// NewManager 创建会话管理器并预加载释放脚本。
func NewManager(client *redis.Client, nodeID string, ttl time.Duration) (*Manager, error) {
	if err := client.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, err
	}
	return &Manager{client: client, nodeID: nodeID, ttl: ttl}, nil
}

func Key(userID string) string {
	return keyPrefix + userID
}

// NodeID 返回本节点标识。
func (m *Manager) NodeID() string {
	return m.nodeID
}

// Register 把用户绑定到本节点，覆盖旧值。
func (m *Manager) Register(ctx context.Context, userID string) error {
	if err := m.client.GetClient().Set(ctx, Key(userID), m.nodeID, m.ttl).Err(); err != nil {
		return fmt.Errorf("register session for %s: %w", userID, err)
	}
	return nil
}

// Refresh 在收到 pong 时续期。
func (m *Manager) Refresh(ctx context.Context, userID string) error {
	return m.Register(ctx, userID)
}

// Remove 删除本节点持有的会话。返回是否真的删除了。
func (m *Manager) Remove(ctx context.Context, userID string) (bool, error) {
	res, err := m.client.RunScript(ctx, releaseScriptName, []string{Key(userID)}, m.nodeID)
	if err != nil {
		return false, fmt.Errorf("remove session for %s: %w", userID, err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}
