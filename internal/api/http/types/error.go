// Package types provides HTTP error type definitions.
package types

import (
	"net/http"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
)

// ErrorResponse 统一错误响应格式
//
// 同步路径上的错误（客户端错误、未就绪、存储不可用）使用该格式；
// 证明失败不会走到这里，而是作为 failed 记录返回。
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`                // HTTP 状态码
	ErrorCode string `json:"errorCode,omitempty"` // 错误分类码
	Message   string `json:"message"`
	RequestID string `json:"traceId,omitempty"` // X-Request-ID
}

// 错误码常量
const (
	ErrInvalidArgument    = "INVALID_ARGUMENT"
	ErrRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrPayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrInternal           = "INTERNAL_ERROR"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// NewErrorResponse 创建错误响应
func NewErrorResponse(status int, code, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:      status,
		ErrorCode: code,
		Message:   message,
	}
}

// FromError 按错误分类生成响应，返回状态码与响应体
func FromError(err error) (int, *ErrorResponse) {
	status := proverr.HTTPStatus(err)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	return status, NewErrorResponse(status, proverr.Code(err), err.Error())
}

// WithRequestID 添加请求ID
func (e *ErrorResponse) WithRequestID(requestID string) *ErrorResponse {
	e.RequestID = requestID
	return e
}
