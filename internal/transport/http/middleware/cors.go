package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsHeaders = "Origin,Content-Type,Accept,X-Request-ID,X-Trace-ID,Traceparent"
	// Headers the console front end reads from responses.
	corsExposed = "X-Request-ID,X-Trace-ID,X-Ebsi-DID"
)

// CORS lets the console front end call the API from the configured origins.
// Origins are compared without a trailing slash and case-insensitively.
// Credentials are only allowed for explicitly listed origins, never for "*".
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	wildcard := false
	for _, origin := range allowedOrigins {
		origin = normalizeOrigin(origin)
		if origin == "*" {
			wildcard = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")

		_, listed := allowed[normalizeOrigin(origin)]
		switch {
		case listed:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}
		c.Header("Access-Control-Expose-Headers", corsExposed)

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", corsMethods)
			c.Header("Access-Control-Allow-Headers", corsHeaders)
			c.Header("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
