package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"recipehub/internal/errcode"
)

// RateCounter 是限流所需的 Redis 子集，*redis.Client 满足该接口。
type RateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// IncrWithTTL 自增计数，首次出现时设置过期时间。
func IncrWithTTL(ctx context.Context, client RateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// RateLimitMiddleware 按客户端 IP 做每分钟固定窗口限流。
// Redis 不可用时放行请求；perMinute <= 0 时关闭限流。
func RateLimitMiddleware(counter RateCounter, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || perMinute <= 0 {
			c.Next()
			return
		}

		window := time.Now().UTC().Format("200601021504")
		key := "rate:ip:" + c.ClientIP() + ":" + window
		count, err := IncrWithTTL(c.Request.Context(), counter, key, time.Minute)
		if err != nil {
			LoggerFromContext(c).Warn("rate limiter unavailable", slog.Any("error", err))
			c.Next()
			return
		}
		if count > int64(perMinute) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": errcode.TooManyRequests})
			return
		}
		c.Next()
	}
}
