package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"hyperscribe.app/scribe/common/logger"
)

// Logger logs one line per request. Requests scoped to a discussion carry
// its id in the log fields of the request context for the handlers too.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if id := c.Param("discussion_id"); id != "" {
			ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
				DiscussionID: logger.Ptr(id),
			})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		status := c.Writer.Status()
		ctx := c.Request.Context()

		// Paths carry discussion keys; the route template is logged instead.
		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes_in", c.Request.ContentLength,
			"client_ip", c.ClientIP(),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}
