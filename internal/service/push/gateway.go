package push

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/pkg/logger"
)

// Gateway 处理 /ws 升级请求
type Gateway struct {
	hub      *Hub
	sessions SessionStore
	tokens   *auth.TokenService
	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, sessions SessionStore, tokens *auth.TokenService) *Gateway {
	return &Gateway{
		hub:      hub,
		sessions: sessions,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 移动端 WebView 的 Origin 不固定，鉴权依赖 token
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/ws", g.serveWs)
}

func (g *Gateway) serveWs(w http.ResponseWriter, r *http.Request) {
	// 浏览器的 WebSocket API 不能设置 Authorization 头，token 放在查询参数里
	token := r.URL.Query().Get("token")
	if token == "" {
		apperr.WriteJSON(w, r, auth.ErrUnauthenticated)
		return
	}
	p, err := g.tokens.Validate(token)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写出了错误响应
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// 连接的生命周期长于请求
	ctx := context.WithoutCancel(r.Context())
	client := newClient(g.hub, conn, p.UserID, g.sessions)
	if !g.hub.Register(client) {
		_ = conn.Close()
		return
	}
	if err := g.sessions.Register(ctx, p.UserID); err != nil {
		// 会话只用于跨节点路由，本节点推送不受影响
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", p.UserID).Msg("failed to register push session")
	}

	go client.writePump()
	go client.readPump(ctx)
}
