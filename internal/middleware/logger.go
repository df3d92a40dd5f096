package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

// Logger 返回请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		args := []interface{}{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"ip", c.ClientIP(),
			"latency", latency,
		}
		if tid := GetTraceID(c); tid != "" {
			args = append(args, "trace_id", tid)
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.Errors())
		}

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			logger.Error("request", args...)
		case status >= 400:
			logger.Warn("request", args...)
		default:
			logger.Debug("request", args...)
		}
	}
}
