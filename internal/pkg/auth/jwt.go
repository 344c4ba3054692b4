// internal/pkg/auth/jwt.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Claims 是平台签发的 JWT 负载。
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Principal 是当前请求的调用者。
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole 判断调用者是否拥有某个角色。
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin 管理员可以下架任何人的帖子。
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// TokenService 使用 HS256 签发和校验令牌。
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue 为用户签发一个令牌。
func (s *TokenService) Issue(userID string, roles []string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate 解析并校验令牌，返回调用者。
func (s *TokenService) Validate(tokenStr string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token subject is required", ErrUnauthenticated)
	}
	return Principal{UserID: claims.Subject, Roles: claims.Roles}, nil
}

type principalKey struct{}

// WithPrincipal 把调用者写入上下文。
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom 从上下文取出调用者。
func PrincipalFrom(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}
