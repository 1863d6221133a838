package middleware

import (
	"pulseboard/pkg/constraints"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const traceKey = "TraceID"

// TraceMiddleware propagates the caller's X-Trace-ID or starts a new trace.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(constraints.TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(traceKey, traceID)
		c.Writer.Header().Set(constraints.TraceIDHeader, traceID)
		c.Next()
	}
}

func TraceID(c *gin.Context) string {
	return c.GetString(traceKey)
}
