package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"recipehub/internal/api/middleware"
	"recipehub/internal/auth"
	"recipehub/internal/database"
	"recipehub/internal/errcode"
	"recipehub/internal/user"
)

const refreshTokenCookieName = "refresh_token"

// AuthHandler 处理注册、登录、刷新、退出与当前用户查询。
type AuthHandler struct {
	users                 *user.Store
	authService           *auth.AuthService
	redis                 sessionStore
	logger                *slog.Logger
	loginRateLimitPerHour int
	loginLockThreshold    int
	loginLockTTL          time.Duration
	cookieDomain          string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(users *user.Store, authService *auth.AuthService, redisClient sessionStore, logger *slog.Logger, loginRateLimitPerHour int, loginLockThreshold int, loginLockTTL time.Duration, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		users:                 users,
		authService:           authService,
		redis:                 redisClient,
		logger:                logger,
		loginRateLimitPerHour: loginRateLimitPerHour,
		loginLockThreshold:    loginLockThreshold,
		loginLockTTL:          loginLockTTL,
		cookieDomain:          cookieDomain,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message     string   `json:"message"`
	User        userView `json:"user"`
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType"`
	ExpiresIn   int      `json:"expiresIn"`
}

// Signup 创建账号并直接登录。
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	logger := loggerFrom(c, h.logger)
	created, err := h.users.Create(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errcode.ErrConflict) {
			logger.Info("signup conflict: email already registered")
		}
		respondError(c, logger, err)
		return
	}

	logger.Info("user registered", slog.String("user_id", created.ID))
	h.issueTokens(c, http.StatusCreated, "User created successfully", created)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Email and password are required")
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := loggerFrom(c, h.logger)

	// 速率限制：每 IP+邮箱 每小时 N 次
	rateKey := loginRateKeyPrefix + c.ClientIP() + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := middleware.IncrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if h.loginRateLimitPerHour > 0 && count > int64(h.loginRateLimitPerHour) {
		TooManyRequests(c, "rate limit exceeded")
		return
	}

	if ttl, _ := h.redis.TTL(ctx, loginLockKeyPrefix+email).Result(); ttl > 0 {
		TooManyRequests(c, "account temporarily locked")
		return
	}

	account, err := h.users.Authenticate(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, errcode.ErrUnauthenticated) {
			logger.Info("login failed")
			if err := h.incrementLoginFail(ctx, email); err != nil {
				logger.Warn("record login failure", slog.Any("error", err))
			}
		}
		respondError(c, logger, err)
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, loginFailKeyPrefix+email).Err()

	h.issueTokens(c, http.StatusOK, "Login successful", account)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair，旧令牌随即失效。
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	claims, ok := h.validRefreshClaims(c, refreshToken)
	if !ok {
		Unauthorized(c)
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c)
		return
	}

	account, err := h.users.Get(ctx, claims.UserID)
	if err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	// 旋转旧刷新令牌，防止重复使用。
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c)
		return
	}

	h.issueTokens(c, http.StatusOK, "Token refreshed", account)
}

// Logout 将刷新令牌加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	if refreshToken := h.extractRefreshToken(c); refreshToken != "" {
		if claims, ok := h.validRefreshClaims(c, refreshToken); ok {
			key := refreshTokenBlacklistKeyPrefix + claims.ID
			if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
				logger.Error("logout revoke token failed", slog.Any("error", err))
				Internal(c)
				return
			}
		}
	}

	h.setCookie(c, refreshTokenCookieName, "", -1)
	h.setCookie(c, middleware.AccessTokenCookieName, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me 返回当前登录用户。
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	account, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(account)})
}

func (h *AuthHandler) issueTokens(c *gin.Context, status int, message string, account database.User) {
	tokenPair, err := h.authService.GenerateTokenPair(account.ID)
	if err != nil {
		loggerFrom(c, h.logger).Error("generate token pair failed", slog.Any("error", err))
		Internal(c)
		return
	}

	h.setCookie(c, refreshTokenCookieName, tokenPair.RefreshToken, ttlSeconds(h.authService.RefreshTokenTTL()))
	h.setCookie(c, middleware.AccessTokenCookieName, tokenPair.AccessToken, ttlSeconds(h.authService.AccessTokenTTL()))
	c.JSON(status, authResponse{
		Message:     message,
		User:        newUserView(account),
		AccessToken: tokenPair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
	})
}

func (h *AuthHandler) validRefreshClaims(c *gin.Context, raw string) (*auth.TokenClaims, bool) {
	logger := loggerFrom(c, h.logger)
	claims, err := h.authService.ValidateRefreshToken(raw)
	if err != nil {
		logger.Info("refresh token rejected", slog.Any("error", err))
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cookieDomain),
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	http.SetCookie(c.Writer, cookie)
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	count, err := middleware.IncrWithTTL(ctx, h.redis, loginFailKeyPrefix+email, h.loginLockTTL)
	if err != nil {
		return err
	}
	if h.loginLockThreshold > 0 && count >= int64(h.loginLockThreshold) {
		return h.redis.Set(ctx, loginLockKeyPrefix+email, "1", h.loginLockTTL).Err()
	}
	return nil
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

func ttlSeconds(d time.Duration) int {
	if s := int(d.Seconds()); s > 0 {
		return s
	}
	return int(time.Hour.Seconds())
}
