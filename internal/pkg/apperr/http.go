package apperr

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/pkg/logger"
)

// HTTPStatus 根据错误类别返回状态码，未知错误一律 500。
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body 是统一的错误响应体。
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// BodyOf 把错误转换为响应体；500 不向客户端暴露内部信息。
func BodyOf(err error) (int, Body) {
	status := HTTPStatus(err)
	var ae *Error
	switch {
	case errors.As(err, &ae):
		return status, Body{Error: ae.Code, Message: ae.Message}
	case status == http.StatusUnauthorized:
		return status, Body{Error: "unauthorized", Message: err.Error()}
	case status == http.StatusInternalServerError:
		return status, Body{Error: "internal_error", Message: "internal server error"}
	default:
		return status, Body{Error: http.StatusText(status), Message: err.Error()}
	}
}

// WriteJSON 写出错误响应，5xx 会记录日志。
func WriteJSON(w http.ResponseWriter, r *http.Request, err error) {
	status, body := BodyOf(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
