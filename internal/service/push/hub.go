// Package push 维护 WebSocket 连接，把配送请求的变化推送给在线的买卖双方。
package push

import (
	"context"
	"sync"

	"agrinexus/internal/pkg/logger"
	"agrinexus/internal/pkg/metrics"
)

// unregistration 带回注销后该用户在本节点上剩余的连接数
type unregistration struct {
	client    *Client
	remaining chan int
}

// Hub 维护所有活跃的连接，一个用户可以同时有多个连接
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan unregistration
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan unregistration),
		done:       make(chan struct{}),
	}
}

// Run 处理注册和注销，ctx 取消时关闭所有连接的发送队列
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]struct{})
			}
			h.clients[client.userID][client] = struct{}{}
			h.lock.Unlock()
			metrics.PushConnections.Inc()
			logger.Ctx(ctx).Debug().Str("user_id", client.userID).Msg("client registered")
		case req := <-h.unregister:
			n := h.remove(req.client)
			req.remaining <- n
			logger.Ctx(ctx).Debug().Str("user_id", req.client.userID).Int("remaining", n).Msg("client unregistered")
		case <-ctx.Done():
			h.lock.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
					metrics.PushConnections.Dec()
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.lock.Unlock()
			return nil
		}
	}
}

// remove 返回该用户剩余的连接数
func (h *Hub) remove(client *Client) int {
	h.lock.Lock()
	defer h.lock.Unlock()
	set, ok := h.clients[client.userID]
	if !ok {
		return 0
	}
	if _, ok := set[client]; !ok {
		return len(set)
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	metrics.PushConnections.Dec()
	return len(set)
}

// Register 在 hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 返回该用户在本节点上剩余的连接数，hub 已停止时返回 0
func (h *Hub) Unregister(client *Client) int {
	req := unregistration{client: client, remaining: make(chan int, 1)}
	select {
	case h.unregister <- req:
		return <-req.remaining
	case <-h.done:
		return 0
	}
}

// SendToUser 投递到该用户在本节点上的所有连接，返回成功入队的连接数。
// 发送队列已满的慢连接直接丢弃本条消息。
func (h *Hub) SendToUser(userID string, payload []byte) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	n := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
			n++
		default:
		}
	}
	return n
}

// Connected 返回该用户在本节点上的连接数
func (h *Hub) Connected(userID string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[userID])
}
