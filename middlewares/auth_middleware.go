package middlewares

import (
	"net/http"
	"strings"

	"github.com/ActorLancer/Food-Info-Trace/utils"

	"github.com/gin-gonic/gin"
)

// RequireRecorder guards write routes with a recorder JWT. An empty secret
// disables the check.
func RequireRecorder(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		claims, err := utils.ParseJWT(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != utils.RoleRecorder {
			abort(c, http.StatusForbidden, "recorder role required")
			return
		}

		c.Set("recorder", claims.Subject)
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": msg})
}
