package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"recipehub/internal/api/middleware"
)

const (
	refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"
	loginRateKeyPrefix             = "rate:login:"
	loginLockKeyPrefix             = "lock:login:"
	loginFailKeyPrefix             = "lock:login:fail:"
)

// sessionStore 是认证流程使用的 Redis 子集：登录限流、失败锁定与刷新令牌黑名单。
type sessionStore interface {
	middleware.RateCounter
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ sessionStore = (*redis.Client)(nil)
