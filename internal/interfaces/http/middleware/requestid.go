package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/maxnet-vpn/maxnet/internal/shared/id"
)

// RequestIDKey is the gin context key holding the request correlation ID.
const RequestIDKey = "request_id"

// requestIDHeader is honored when the caller supplies its own ID.
const requestIDHeader = "X-Request-ID"

// RequestID attaches a correlation ID to every request, echoing it back in
// the response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = id.NewRequestID()
		}
		c.Set(RequestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}
