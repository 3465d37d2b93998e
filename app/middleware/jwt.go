package middleware

import (
	"net/http"
	"strings"

	"ugc-forge/app/auth"
	"ugc-forge/app/config"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

// JWTAuth requires a valid bearer token and stores its user id in the context.
func JWTAuth(cfg config.JWTConfig) gin.HandlerFunc {
	jwtService := auth.NewJWTService(cfg)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{
		"success": false,
		"error":   message,
	})
}
