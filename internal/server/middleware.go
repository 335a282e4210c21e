package server

import (
	"time"

	"webhook-search/internal/common/logger"
	"webhook-search/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestID reuses an inbound X-Request-ID or mints one, echoes it on the
// response and stores it on the request context for the webhook call.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(webhook.HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("requestId", id)
		c.Header(webhook.HeaderRequestID, id)
		c.Request = c.Request.WithContext(webhook.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latencyMs": time.Since(start).Milliseconds(),
			"requestId": c.GetString("requestId"),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Error("request handled", fields)
		case c.Writer.Status() >= 400:
			log.Warn("request handled", fields)
		default:
			log.Debug("request handled", fields)
		}
	}
}
