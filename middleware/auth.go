package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
)

const sessionKeyPrefix = "admin_session:"

// SessionKey builds the cache key under which an admin token's session lives.
func SessionKey(token string) string { return sessionKeyPrefix + token }

// AdminAuth validates the Bearer JWT, requires the admin role, and checks
// that the session has not been revoked in the cache.
func AdminAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil || claims.Role != RoleAdmin {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := c.Exists(cacheCtx, SessionKey(tokenStr))
		if err != nil || !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		ctx.Next()
	}
}

// ServerAuth guards the internal mutation surface. The game server
// authenticates with a static shared key in the X-Server-Key header.
// An empty configured key disables the whole group.
func ServerAuth(sec config.SecurityConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if sec.ServerKey == "" {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "internal api disabled"})
			return
		}
		key := ctx.GetHeader("X-Server-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(sec.ServerKey)) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid server key"})
			return
		}
		ctx.Next()
	}
}
