package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	infralog "github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// Logger 访问日志中间件（复用系统统一日志接口）
type Logger struct {
	logger infralog.Logger
	// skip 不记录的路径，健康探针与指标抓取过于频繁
	skip map[string]struct{}
}

// NewLogger 创建日志中间件
func NewLogger(logger infralog.Logger, skipPaths ...string) *Logger {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &Logger{logger: logger, skip: skip}
}

// Middleware 返回Gin中间件
func (m *Logger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if _, ok := m.skip[path]; ok {
			return
		}
		latency := time.Since(start)
		status := c.Writer.Status()
		traceID := GetRequestID(c)

		if zl := m.logger.GetZapLogger(); zl != nil {
			fields := []zap.Field{
				zap.String("trace_id", traceID),
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.String("query", query),
				zap.Int("status", status),
				zap.Duration("latency", latency),
				zap.String("client_ip", c.ClientIP()),
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			switch {
			case status >= 500:
				zl.Error("HTTP request", fields...)
			case status >= 400:
				zl.Warn("HTTP request", fields...)
			default:
				zl.Info("HTTP request", fields...)
			}
			return
		}

		msg := fmt.Sprintf("HTTP request | id=%s method=%s path=%s?%s status=%d latency=%s ip=%s",
			traceID, c.Request.Method, path, query, status, latency, c.ClientIP())
		switch {
		case status >= 500:
			m.logger.Error(msg)
		case status >= 400:
			m.logger.Warn(msg)
		default:
			m.logger.Info(msg)
		}
	}
}
