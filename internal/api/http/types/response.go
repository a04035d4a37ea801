// Package types provides HTTP response type definitions.
package types

// HealthResponse 健康检查响应
type HealthResponse struct {
	Message    string                 `json:"message"`
	Timestamp  int64                  `json:"timestamp"` // 毫秒
	Uptime     float64                `json:"uptime"`    // 秒
	Version    string                 `json:"version,omitempty"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status    string          `json:"status"` // ready, not_ready
	Checks    map[string]bool `json:"checks"`
	Timestamp int64           `json:"timestamp"`
}
