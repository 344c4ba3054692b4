package push

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"agrinexus/internal/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// SessionStore 记录用户连在哪个网关节点上
type SessionStore interface {
	Register(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) (bool, error)
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	sessions SessionStore
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, sessions SessionStore) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer), userID: userID, sessions: sessions}
}

// writePump 把 send 队列中的消息写入连接，并定时发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub 关闭了队列
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳。收到 pong 时续期会话，连接断开时注销；
// 该用户在本节点上的最后一个连接断开时才删除会话。
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		remaining := c.hub.Unregister(c)
		_ = c.conn.Close()
		if remaining > 0 {
			return
		}
		if _, err := c.sessions.Remove(ctx, c.userID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("user_id", c.userID).Msg("failed to remove push session")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if err := c.sessions.Refresh(ctx, c.userID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("user_id", c.userID).Msg("failed to refresh push session")
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Ctx(ctx).Debug().Err(err).Str("user_id", c.userID).Msg("websocket closed unexpectedly")
			}
			return
		}
	}
}
