package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/allyai/cache"
	"github.com/kasuganosora/allyai/config"
)

const ControllerKey = "controller"

// TokenKey is the cache key marking a controller token as live.
func TokenKey(jti string) string { return "allyai:token:" + jti }

// bearer reads the token from the Authorization header, falling back to the
// token query parameter for clients that cannot set headers (EventSource).
func bearer(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// ControllerAuth validates the controller JWT and checks that its session is
// still live in the cache. Revoking a token deletes its cache key.
func ControllerAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr := bearer(ctx)
		if tokenStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		live, err := c.Exists(cacheCtx, TokenKey(claims.ID))
		if err != nil || !live {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return
		}

		ctx.Set(ControllerKey, claims.Controller)
		ctx.Next()
	}
}

// GetController retrieves the authenticated controller name from the Gin context.
func GetController(c *gin.Context) string {
	if v, exists := c.Get(ControllerKey); exists {
		return v.(string)
	}
	return ""
}
