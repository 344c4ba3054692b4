// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

var (
	// ErrLocked 资源已被其他持有者锁定
	ErrLocked = errors.New("zookeeper: resource is locked")
	// ErrLockLost 锁节点已属于其他持有者，例如本会话过期后被别人重新加锁
	ErrLockLost = errors.New("zookeeper: lock is held by another owner")
)

// Conn 是 *zk.Conn 中锁需要的部分，测试时可替换。
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Delete(path string, version int32) error
}

// zkLogger 把 zk 客户端日志转到 zerolog
type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	zlog.Debug().Str("component", "zookeeper").Msgf(format, args...)
}

// Dial 连接 ZooKeeper 集群。会话过期后临时节点会被服务端清理。
func Dial(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return conn, nil
}

// Locker 在 root 下为每个资源创建一个临时节点作为锁。
// 与排队等待的顺序节点锁不同，节点已存在时立即返回 ErrLocked。
type Locker struct {
	conn Conn
	root string
}

// NewLocker 创建锁管理器，并逐级确保 root 路径存在
func NewLocker(conn Conn, root string) (*Locker, error) {
	root = "/" + strings.Trim(root, "/")
	if err := ensurePath(conn, root); err != nil {
		return nil, err
	}
	return &Locker{conn: conn, root: root}, nil
}

func ensurePath(conn Conn, path string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		current += "/" + part
		exists, _, err := conn.Exists(current)
		if err != nil {
			return errors.Wrapf(err, "check zookeeper node %s", current)
		}
		if exists {
			continue
		}
		_, err = conn.Create(current, []byte(""), 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return errors.Wrapf(err, "create zookeeper node %s", current)
		}
	}
	return nil
}

// Lock 是一次成功加锁的句柄
type Lock struct {
	conn  Conn
	path  string
	token []byte
}

// TryLock 尝试锁定资源。节点数据是 <owner>:<uuid>，owner 便于排查，uuid 用于释放时确认归属
func (l *Locker) TryLock(resourceID, owner string) (*Lock, error) {
	path := l.root + "/" + resourceID
	token := []byte(owner + ":" + uuid.NewString())
	_, err := l.conn.Create(path, token, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil {
		if errors.Is(err, zk.ErrNodeExists) {
			return nil, ErrLocked
		}
		return nil, errors.Wrapf(err, "create lock node %s", path)
	}
	return &Lock{conn: l.conn, path: path, token: token}, nil
}

// Path 锁节点路径
func (l *Lock) Path() string { return l.path }

// Unlock 确认节点仍是本次加锁创建的之后按版本删除；节点已不存在时视为成功，
// 已被其他持有者重新创建时不删除并返回 ErrLockLost
func (l *Lock) Unlock() error {
	data, stat, err := l.conn.Get(l.path)
	if errors.Is(err, zk.ErrNoNode) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read lock node: %w", err)
	}
	if !bytes.Equal(data, l.token) {
		return ErrLockLost
	}
	err = l.conn.Delete(l.path, stat.Version)
	switch {
	case err == nil, errors.Is(err, zk.ErrNoNode):
		return nil
	case errors.Is(err, zk.ErrBadVersion):
		return ErrLockLost
	default:
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
}
