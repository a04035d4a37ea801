package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID 追踪ID请求头
	HeaderRequestID = "X-Request-ID"

	requestIDKey       = "request_id"
	maxRequestIDHeader = 128
)

// RequestID 请求ID中间件
// 为每个请求生成追踪ID；与证明请求标识 requestId 无关
type RequestID struct{}

// NewRequestID 创建请求ID中间件
func NewRequestID() *RequestID {
	return &RequestID{}
}

// Middleware 返回Gin中间件
func (m *RequestID) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderRequestID)
		// 过长的外部ID直接替换，避免写入日志
		if traceID == "" || len(traceID) > maxRequestIDHeader {
			traceID = uuid.New().String()
		}

		c.Set(requestIDKey, traceID)
		c.Header(HeaderRequestID, traceID)

		c.Next()
	}
}

// GetRequestID 从上下文获取追踪ID（与 RequestID 中间件配合）
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok2 := v.(string); ok2 && s != "" {
			return s
		}
	}
	return c.GetHeader(HeaderRequestID)
}
