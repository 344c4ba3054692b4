// internal/pkg/auth/middleware.go
package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"agrinexus/internal/pkg/logger"
)

// Middleware 校验 Bearer 令牌，未配置 TokenService 时全部拒绝（fail closed）。
func Middleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			if tokens == nil {
				writeUnauthorized(w, "authentication not configured")
				return
			}

			principal, err := tokens.Validate(tokenStr)
			if err != nil {
				logger.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = logger.WithFields(ctx, map[string]string{"user_id": principal.UserID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken 优先读取 Authorization 头；WebSocket 握手无法自定义头，回退到 token 查询参数。
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}
