package adapter

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/zookeeper"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

// ZookeeperMutationGuard 是 port.MutationGuard 的 ZooKeeper 实现。
// 锁是临时节点，持有者会话断开时自动释放。
type ZookeeperMutationGuard struct {
	locker *zookeeper.Locker
	owner  string
}

// NewZookeeperMutationGuard owner 一般是节点的 hostname
func NewZookeeperMutationGuard(locker *zookeeper.Locker, owner string) *ZookeeperMutationGuard {
	return &ZookeeperMutationGuard{locker: locker, owner: owner}
}

func (g *ZookeeperMutationGuard) Acquire(ctx context.Context, requestID string) (port.ReleaseFunc, error) {
	lock, err := g.locker.TryLock(requestID, g.owner)
	if err != nil {
		if errors.Is(err, zookeeper.ErrLocked) {
			return nil, domain.ErrMutationInFlight
		}
		return nil, err
	}

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			if err := lock.Unlock(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("path", lock.Path()).Msg("failed to release delivery guard")
			}
		})
	}, nil
}
