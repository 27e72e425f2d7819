package middleware

import (
	"net/http"
	"strings"

	"elasticpool/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware simple bearer token authentication, an empty apiKey disables it
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token != apiKey {
			logger.WarnCtx(c.Request.Context(), "unauthorized request from %s, invalid API key", c.ClientIP())
			c.String(http.StatusUnauthorized, "ERROR: unauthorized")
			c.Abort()
			return
		}

		c.Next()
	}
}
