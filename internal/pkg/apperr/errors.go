// Package apperr 定义跨服务共用的错误类别，以及到 HTTP 状态码的映射。
package apperr

import (
	"github.com/pkg/errors"
)

// 错误类别。领域错误通过 Unwrap 归属到其中一个类别。
var (
	ErrNotFound   = errors.New("not_found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation_failed")
	ErrConflict   = errors.New("conflict")
)

// Error 是带机器可读 code 的领域错误。
type Error struct {
	kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap 让 errors.Is(err, ErrConflict) 之类的判断成立。
func (e *Error) Unwrap() error { return e.kind }

// Is 同 code 的错误视为同一个错误，带细节的副本仍然能匹配原始哨兵。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Withf 返回附带细节说明的副本。
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{kind: e.kind, Code: e.Code, Message: e.Message + ": " + errors.Errorf(format, args...).Error()}
}

// New 创建一个归属于 kind 的领域错误。
func New(kind error, code, message string) *Error {
	return &Error{kind: kind, Code: code, Message: message}
}

// Validation 创建一个参数校验错误。
func Validation(message string) *Error {
	return New(ErrValidation, "validation_failed", message)
}

// Validationf 同 Validation，支持格式化。
func Validationf(format string, args ...any) *Error {
	return Validation(errors.Errorf(format, args...).Error())
}
