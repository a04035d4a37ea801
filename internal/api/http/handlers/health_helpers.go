package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusBuilding  = "building"

	storePingTimeout = 2 * time.Second
)

// checkStore 检查证明缓存连通性并测量延迟
func (h *HealthHandler) checkStore(ctx context.Context) map[string]interface{} {
	if h.store == nil {
		return map[string]interface{}{
			"status": statusUnhealthy,
			"error":  "proof store not available",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()

	start := h.clock.Now()
	err := h.store.Ping(ctx)
	latency := h.clock.Since(start)
	if err != nil {
		h.logger.Warn("Proof store health check failed",
			zap.Error(err),
			zap.Duration("latency", latency))
		return map[string]interface{}{
			"status":     statusUnhealthy,
			"latency_ms": latency.Milliseconds(),
			"error":      err.Error(),
		}
	}
	return map[string]interface{}{
		"status":     statusHealthy,
		"latency_ms": latency.Milliseconds(),
	}
}

// checkRegistry 检查电路密钥是否已生成
func (h *HealthHandler) checkRegistry() map[string]interface{} {
	if h.registry == nil {
		return map[string]interface{}{
			"status": statusUnhealthy,
			"error":  "circuit registry not available",
		}
	}

	st := h.registry.Status()
	out := map[string]interface{}{
		"stages":         st.Stages,
		"build_duration": st.BuildDuration.String(),
	}
	switch {
	case st.Ready:
		out["status"] = statusHealthy
		out["built_at"] = st.BuiltAt
	case st.BuildError != "":
		out["status"] = statusUnhealthy
		out["error"] = st.BuildError
	default:
		out["status"] = statusBuilding
	}
	return out
}

// executorStats 作业执行器统计
func (h *HealthHandler) executorStats() map[string]interface{} {
	if h.executor == nil {
		return nil
	}
	return h.executor.GetStats()
}

// memoryStats 最近一次内存采样
func (h *HealthHandler) memoryStats() map[string]interface{} {
	if h.memory == nil {
		return nil
	}
	s := h.memory.GetCurrentStats()
	return map[string]interface{}{
		"heap_alloc":    s.HeapAlloc,
		"heap_inuse":    s.HeapInuse,
		"num_goroutine": s.NumGoroutine,
		"system_total":  s.SystemTotal,
		"system_free":   s.SystemFree,
	}
}
