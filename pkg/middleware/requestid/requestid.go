// Package requestid tags every request with an id so log lines from one
// attendance operation can be correlated across handler, service and repo.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request id on both request and response.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware stores the caller-supplied id, or a fresh one, in the context
// and echoes it on the response header.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the id set by Middleware, or "" when it never ran.
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
