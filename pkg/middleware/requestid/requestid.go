package requestid

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"

	// maxInboundLen caps caller-supplied ids so log lines stay bounded.
	maxInboundLen = 64
)

// Middleware tags each request with an id. A well-formed inbound
// X-Request-ID is kept so ids correlate across the mobile client, the
// gateway and the logs; anything else is replaced.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerKey)
		if !acceptable(reqID) {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(headerKey, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// acceptable rejects empty, oversized and control-character ids.
func acceptable(id string) bool {
	if id == "" || len(id) > maxInboundLen {
		return false
	}
	return strings.IndexFunc(id, func(r rune) bool {
		return r <= ' ' || r == 0x7f
	}) < 0
}
