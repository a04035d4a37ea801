package api

import "time"

// API配置默认值
const (
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	// defaultMaxRequestBytes 发送见证包含64笔转账及其资产证明，默认放宽到16MB
	defaultMaxRequestBytes int64 = 16 << 20

	defaultEnableMetrics = true
	defaultMaxBatchIDs   = 128

	// 限流：查询宽松，提交严格
	defaultReadRateLimit  = 200
	defaultWriteRateLimit = 20
)
