package errcode

import (
	"errors"
)

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方错误（参数、身份、权限、资源缺失、冲突、限流）
// - 5xxx：系统错误（需要中断流程）
const (
	OK               = 0
	ValidationFailed = 4000
	Unauthenticated  = 4001
	Forbidden        = 4003
	ResourceMissing  = 4004
	Conflict         = 4009
	TooManyRequests  = 4029
	SystemError      = 5000
)

// 错误种类哨兵，配合 errors.Is 使用。
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("authentication error")
	ErrForbidden       = errors.New("authorization error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// Error 是领域层返回的类型化错误，Message 可以直接展示给调用方。
type Error struct {
	kind    error
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap 让 errors.Is(err, ErrXxx) 可以识别错误种类。
func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, code int, msg string) *Error {
	return &Error{kind: kind, Code: code, Message: msg}
}

func Validation(msg string) *Error     { return newError(ErrValidation, ValidationFailed, msg) }
func Authentication(msg string) *Error { return newError(ErrUnauthenticated, Unauthenticated, msg) }
func Authorization(msg string) *Error  { return newError(ErrForbidden, Forbidden, msg) }
func NotFound(msg string) *Error       { return newError(ErrNotFound, ResourceMissing, msg) }
func ConflictError(msg string) *Error  { return newError(ErrConflict, Conflict, msg) }

// CodeOf 返回错误对应的业务码；非类型化错误一律视为系统错误。
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return SystemError
}
