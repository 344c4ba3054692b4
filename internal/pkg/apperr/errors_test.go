package apperr

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"agrinexus/internal/pkg/auth"
)

var errStale = New(ErrConflict, "invalid_transition", "status changed")

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("qty must be positive"), http.StatusBadRequest},
		{New(ErrNotFound, "card_not_found", "missing"), http.StatusNotFound},
		{New(ErrForbidden, "not_owner", "nope"), http.StatusForbidden},
		{errors.Wrap(errStale, "accept"), http.StatusConflict},
		{fmt.Errorf("validate: %w", auth.ErrUnauthenticated), http.StatusUnauthorized},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestWrappedSentinelKeepsIdentity(t *testing.T) {
	err := errors.Wrap(errStale, "repo")
	assert.True(t, errors.Is(err, errStale))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, httptest.NewRequest(http.MethodPost, "/x", nil), errors.Wrap(errStale, "accept"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_transition","message":"status changed"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteJSON(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("dsn leaked"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dsn leaked")
}

func TestWithfMatchesSentinel(t *testing.T) {
	detailed := errStale.Withf("request %s is %s", "dr-1", "accepted")
	assert.True(t, errors.Is(detailed, errStale))
	assert.True(t, errors.Is(detailed, ErrConflict))
	assert.Equal(t, "status changed: request dr-1 is accepted", detailed.Error())
	assert.Equal(t, "invalid_transition", detailed.Code)
}
