package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weisyn/rollup-prover/internal/api/http/types"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
)

// ErrorHandler 错误处理中间件
//
// 处理器通过 c.Error 上报错误且未写响应时，按错误分类写入统一错误响应：
// 客户端错误 400，未就绪与存储不可用 503，其余 500。
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, resp := types.FromError(err)
		resp.WithRequestID(GetRequestID(c))

		if status >= http.StatusInternalServerError {
			logger.Error("HTTP error",
				zap.String("code", resp.ErrorCode),
				zap.String("traceId", resp.RequestID),
				zap.String("path", c.Request.URL.Path),
				zap.Bool("not_ready", proverr.IsNotReady(err)),
				zap.Error(err))
		}
		c.AbortWithStatusJSON(status, resp)
	}
}

// BodyLimit 限制请求体大小
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			if c.Request.ContentLength > maxBytes {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
					types.NewErrorResponse(http.StatusRequestEntityTooLarge, types.ErrPayloadTooLarge, "request body too large").
						WithRequestID(GetRequestID(c)))
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
