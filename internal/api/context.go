package api

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"recipehub/internal/api/middleware"
)

func userIDFromContext(c *gin.Context) (string, bool) {
	return middleware.UserID(c)
}

func loggerFrom(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := middleware.RequestLogger(c); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// queryInt 解析整数查询参数，缺失或非法时返回 0，交由分页层回落默认值。
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
