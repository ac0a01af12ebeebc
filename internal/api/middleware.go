package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"postsync/internal/logger"
)

// LoggerMiddleware logs one entry per HTTP request.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, logger.String("query", query))
		}
		if !strings.HasPrefix(path, "/health") && !strings.HasPrefix(path, "/metrics") {
			fields = append(fields, logger.String("user_agent", c.Request.UserAgent()))
		}

		if len(c.Errors) == 0 {
			log.Info("HTTP request", fields...)
			return
		}
		messages := make([]string, len(c.Errors))
		for i, err := range c.Errors {
			messages[i] = err.Err.Error()
		}
		fields = append(fields, logger.Strings("errors", messages))
		log.Error("HTTP request with errors", fields...)
	}
}
