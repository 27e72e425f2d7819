package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"elasticpool/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/pretty"
)

const maxLoggedBody = 1000

// Logger request log middleware, JSON bodies are compacted into the log line
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var bodyStr string
		if c.Request.Method == http.MethodPost && isJSON(c.ContentType()) {
			bodyStr = getRequestBody(c)
		}

		c.Next()

		// probes and scrapes are too frequent to log
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}

		logMsg := "[GIN] %3d | %13v | %15s | %s | %s"
		args := []interface{}{
			c.Writer.Status(),
			time.Since(startTime),
			c.ClientIP(),
			c.Request.Method,
			c.Request.RequestURI,
		}
		if bodyStr != "" {
			logMsg += " | body: %s"
			args = append(args, bodyStr)
		}
		logger.InfoCtx(c.Request.Context(), logMsg, args...)
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// getRequestBody gets request body content and restores it for the handler
func getRequestBody(c *gin.Context) string {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	return CompressBody(string(bodyBytes))
}

// CompressBody compresses JSON using pretty package
func CompressBody(body string) string {
	if len(body) == 0 {
		return ""
	}

	// ugly removes all whitespace
	compressed := pretty.Ugly([]byte(body))
	if len(compressed) > maxLoggedBody {
		return string(compressed[:maxLoggedBody]) + "..."
	}
	return string(compressed)
}
