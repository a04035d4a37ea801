package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weisyn/rollup-prover/internal/api/http/types"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/metrics"
)

// MemoryHandler 内存监控端点处理器
//
// 📊 GET /system/memory: 当前采样与采样历史
type MemoryHandler struct {
	logger       *zap.Logger
	memoryDoctor *metrics.MemoryDoctor
}

// NewMemoryHandler 创建内存监控处理器
func NewMemoryHandler(logger *zap.Logger, memoryDoctor *metrics.MemoryDoctor) *MemoryHandler {
	return &MemoryHandler{
		logger:       logger,
		memoryDoctor: memoryDoctor,
	}
}

// RegisterRoutes 注册内存监控路由
func (h *MemoryHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/system/memory", h.GetMemory)
}

// GetMemory 获取当前内存状态
//
// GET /system/memory
//
// 响应格式：
//
//	{
//	  "current": {"heap_alloc": 123456789, "system_free": 4294967296, ...},
//	  "history": [...]
//	}
func (h *MemoryHandler) GetMemory(c *gin.Context) {
	if h.memoryDoctor == nil {
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse(http.StatusServiceUnavailable, types.ErrServiceUnavailable, "memory doctor is not available"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"current": h.memoryDoctor.GetCurrentStats(),
		"history": h.memoryDoctor.GetHistory(),
	})
}
