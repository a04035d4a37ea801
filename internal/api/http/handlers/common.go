// Package handlers provides HTTP API handlers for the rollup proof gateway.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/rollup-prover/internal/api/http/types"
	"github.com/weisyn/rollup-prover/internal/core/prover/pipeline"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/core/prover/registry"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ==================== 📋 依赖接口 ====================

// ProofService 证明流水线
type ProofService interface {
	Submit(ctx context.Context, stage rollup.Stage, subject string, req *pipeline.SubmitRequest) (*pipeline.ProofResponse, error)
	Get(ctx context.Context, stage rollup.Stage, subject, requestID string) (*pipeline.ProofResponse, error)
	GetBatch(ctx context.Context, stage rollup.Stage, subject string, requestIDs []string) (*pipeline.BatchResponse, error)
}

// StorePinger 证明缓存连通性
type StorePinger interface {
	Ping(ctx context.Context) error
}

// RegistryStatus 电路注册表状态
type RegistryStatus interface {
	Status() registry.Status
}

// StatsProvider 执行器统计
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// ==================== 🎯 错误辅助 ====================

// parseStage 解析路由中的阶段参数
func parseStage(c *gin.Context) (rollup.Stage, error) {
	stage, err := rollup.ParseStage(c.Param("stage"))
	if err != nil {
		return "", proverr.Wrap(proverr.ErrUnsupportedStage, "%v", err)
	}
	return stage, nil
}

// bodyError 请求体解析错误；超出大小限制时单独返回 413
func bodyError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			types.NewErrorResponse(http.StatusRequestEntityTooLarge, types.ErrPayloadTooLarge, err.Error()))
		return
	}
	_ = c.Error(proverr.Wrap(proverr.ErrMalformedWitness, "decode request: %v", err))
}
