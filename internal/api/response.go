package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipehub/internal/errcode"
)

func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": errcode.Unauthenticated})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, errcode.Unauthenticated, "unauthorized")
}
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, errcode.ValidationFailed, msg)
}
func NotFound(c *gin.Context, msg string) { Error(c, http.StatusNotFound, errcode.ResourceMissing, msg) }
func TooManyRequests(c *gin.Context, msg string) {
	Error(c, http.StatusTooManyRequests, errcode.TooManyRequests, msg)
}
func Internal(c *gin.Context) {
	Error(c, http.StatusInternalServerError, errcode.SystemError, "internal error")
}

// respondError 把领域错误映射为 HTTP 状态；非类型化错误记录完整日志后只返回通用信息。
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var e *errcode.Error
	if errors.As(err, &e) {
		Error(c, statusFor(err), errcode.CodeOf(err), e.Message)
		return
	}
	logger.Error("request failed", slog.Any("error", err))
	Internal(c)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errcode.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errcode.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errcode.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errcode.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errcode.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
