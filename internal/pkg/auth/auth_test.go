package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("secret", "agrinexus")
	tok, err := svc.Issue("farmer-1", []string{RoleFarmer}, time.Hour)
	require.NoError(t, err)

	p, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "farmer-1", p.UserID)
	assert.True(t, p.HasRole(RoleFarmer))
	assert.False(t, p.IsAdmin())
}

func TestTokenService_RejectsExpiredAndForeign(t *testing.T) {
	svc := NewTokenService("secret", "agrinexus")
	expired, err := svc.Issue("u", nil, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Validate(expired)
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	other := NewTokenService("other-secret", "agrinexus")
	foreign, err := other.Issue("u", nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.Validate(foreign)
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	wrongIssuer, err := NewTokenService("secret", "someone-else").Issue("u", nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.Validate(wrongIssuer)
	assert.True(t, errors.Is(err, ErrUnauthenticated))
}

func TestPrincipalFrom_Missing(t *testing.T) {
	_, err := PrincipalFrom(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	svc := NewTokenService("secret", "agrinexus")
	tok, err := svc.Issue("buyer-9", []string{RoleBuyer}, time.Hour)
	require.NoError(t, err)

	var seen Principal
	h := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "valid header", header: "Bearer " + tok, want: http.StatusNoContent},
		{name: "valid query token", query: "?token=" + tok, want: http.StatusNoContent},
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Principal{}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/market-cards"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "buyer-9", seen.UserID)
			}
		})
	}
}

func TestMiddleware_NilServiceFailsClosed(t *testing.T) {
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
