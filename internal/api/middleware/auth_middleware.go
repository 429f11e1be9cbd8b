package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipehub/internal/auth"
	"recipehub/internal/errcode"
)

const (
	userIDKey = "userID"

	// AccessTokenCookieName 是浏览器端携带访问令牌的 Cookie。
	AccessTokenCookieName = "token"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": errcode.Unauthenticated})
}

// AuthMiddleware 校验访问令牌并将 userID 注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authenticate(c, authService)
		if !ok {
			abortUnauthorized(c)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware 有合法令牌时注入 userID，否则按匿名请求继续。
func OptionalAuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := authenticate(c, authService); ok {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

// UserID 返回认证中间件注入的用户 ID。
func UserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

func authenticate(c *gin.Context, authService *auth.AuthService) (string, bool) {
	rawToken := bearerToken(c.GetHeader("Authorization"))
	if rawToken == "" {
		if cookie, err := c.Cookie(AccessTokenCookieName); err == nil {
			rawToken = strings.TrimSpace(cookie)
		}
	}
	if rawToken == "" {
		return "", false
	}

	userID, err := authService.ValidateAccessToken(rawToken)
	if err != nil {
		return "", false
	}
	return userID, true
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
