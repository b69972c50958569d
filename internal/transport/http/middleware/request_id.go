package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appLogger "github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
)

// Inbound ids end up in logs, Kafka metadata and the outcome history, so only
// short opaque tokens are accepted.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RequestID correlates one console request with the log lines, Outcome
// records and Kafka envelopes it produces. A caller-supplied X-Request-ID is
// kept when well formed and replaced otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if !validRequestID.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		c.Set(RequestIDKey, reqID)
		c.Header(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(appLogger.ContextWithRequestID(c.Request.Context(), reqID))

		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
