package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weisyn/rollup-prover/internal/api/http/types"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/metrics"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
)

// 健康检查失败消息
const (
	StoreConnectionError       = "proof store connection error"
	CircuitInitializationError = "circuit initialization error"
)

// HealthHandler 健康检查端点处理器
//
// 🏥 **Kubernetes风格健康检查**
//
// - /health: 完整健康报告，存储或电路不可用时 503
// - /health/live: 存活检查（进程是否响应）
// - /health/ready: 就绪检查（存储可达且电路密钥已生成）
type HealthHandler struct {
	logger    *zap.Logger
	clock     clock.Clock
	startTime time.Time
	version   string

	store    StorePinger
	registry RegistryStatus
	executor StatsProvider
	memory   *metrics.MemoryDoctor // 可选
}

// NewHealthHandler 创建健康检查处理器
//
// 参数：
//   - store: 证明缓存（连通性检查）
//   - registry: 电路注册表（就绪检查）
//   - executor: 作业执行器（统计信息，可为nil）
//   - memory: 内存采样器（可为nil）
func NewHealthHandler(
	logger *zap.Logger,
	clk clock.Clock,
	version string,
	store StorePinger,
	registry RegistryStatus,
	executor StatsProvider,
	memory *metrics.MemoryDoctor,
) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:    logger,
		clock:     clk,
		startTime: clk.Now(),
		version:   version,
		store:     store,
		registry:  registry,
		executor:  executor,
		memory:    memory,
	}
}

// RegisterRoutes 注册健康检查路由
func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("", h.GetHealth)
		health.GET("/live", h.GetLiveness)
		health.GET("/ready", h.GetReadiness)
	}
}

// GetHealth 获取完整健康状态
//
// GET /health
//
// 依次检查证明缓存与电路注册表，任一失败返回 503 {code,message}；
// 成功时返回 {message,timestamp,uptime} 及各组件详情。
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	storeStatus := h.checkStore(ctx)
	if storeStatus["status"] != statusHealthy {
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse(http.StatusServiceUnavailable, types.ErrServiceUnavailable, StoreConnectionError))
		return
	}

	registryStatus := h.checkRegistry()
	if registryStatus["status"] != statusHealthy {
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse(http.StatusServiceUnavailable, types.ErrServiceUnavailable, CircuitInitializationError))
		return
	}

	now := h.clock.Now()
	c.JSON(http.StatusOK, &types.HealthResponse{
		Message:   "OK",
		Timestamp: now.UnixMilli(),
		Uptime:    now.Sub(h.startTime).Seconds(),
		Version:   h.version,
		Components: map[string]interface{}{
			"store":    storeStatus,
			"registry": registryStatus,
			"executor": h.executorStats(),
			"memory":   h.memoryStats(),
		},
	})
}

// GetLiveness 存活检查（Kubernetes Liveness Probe）
//
// GET /health/live
//
// 不检查依赖服务，能执行到这里就表示进程存活。
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.clock.Now().UnixMilli(),
	})
}

// GetReadiness 就绪检查（Kubernetes Readiness Probe）
//
// GET /health/ready
//
// 返回：
// - 200 OK：可接受证明请求
// - 503 Service Unavailable：存储不可达或电路密钥未就绪
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	checks := map[string]bool{
		"store":    h.checkStore(c.Request.Context())["status"] == statusHealthy,
		"circuits": h.checkRegistry()["status"] == statusHealthy,
	}

	resp := &types.ReadinessResponse{
		Status:    "ready",
		Checks:    checks,
		Timestamp: h.clock.Now().UnixMilli(),
	}
	for _, ok := range checks {
		if !ok {
			resp.Status = "not_ready"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
