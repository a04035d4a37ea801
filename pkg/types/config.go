// Package types 定义证明网关的用户配置结构
//
// 🔧 零值陷阱处理说明：
// 为了区分"用户未设置"和"用户设置为零值"，用户配置字段统一使用指针类型：
// - nil: 表示用户未在配置文件中设置该字段，将使用系统默认值
// - &value: 表示用户明确设置了该值，即使是零值也会被采用
package types

// AppConfig 应用配置文件结构（只包含用户友好的配置字段）
type AppConfig struct {
	API    *UserAPIConfig    `json:"api,omitempty"`
	Log    *UserLogConfig    `json:"log,omitempty"`
	Store  *UserStoreConfig  `json:"store,omitempty"`
	Prover *UserProverConfig `json:"prover,omitempty"`
}

// UserAPIConfig 用户API配置
type UserAPIConfig struct {
	HTTPHost        *string `json:"http_host,omitempty"`
	HTTPPort        *int    `json:"http_port,omitempty"`
	ReadTimeout     *string `json:"read_timeout,omitempty"`  // 例如 "15s"
	WriteTimeout    *string `json:"write_timeout,omitempty"` // 例如 "15s"
	MaxRequestBytes *int64  `json:"max_request_bytes,omitempty"`
	EnableMetrics   *bool   `json:"enable_metrics,omitempty"`
	MaxBatchIDs     *int    `json:"max_batch_ids,omitempty"`    // 批量查询单次最多ID数量
	ReadRateLimit   *int    `json:"read_rate_limit,omitempty"`  // 每IP查询QPS，0 关闭
	WriteRateLimit  *int    `json:"write_rate_limit,omitempty"` // 每IP提交QPS，0 关闭
}

// UserLogConfig 用户日志配置
type UserLogConfig struct {
	Level    *string `json:"level,omitempty"`     // 日志级别：debug, info, warn, error, fatal
	FilePath *string `json:"file_path,omitempty"` // 日志文件路径
	Console  *bool   `json:"console,omitempty"`   // 是否同时输出到控制台
}

// UserStoreConfig 用户证明缓存配置
type UserStoreConfig struct {
	Backend         *string `json:"backend,omitempty"` // redis | badger | memory
	RedisAddr       *string `json:"redis_addr,omitempty"`
	RedisPassword   *string `json:"redis_password,omitempty"`
	RedisDB         *int    `json:"redis_db,omitempty"`
	KeyPrefix       *string `json:"key_prefix,omitempty"`
	BadgerPath      *string `json:"badger_path,omitempty"`
	ProofExpiration *string `json:"proof_expiration,omitempty"` // 例如 "24h"
	ReadCache       *bool   `json:"read_cache,omitempty"`       // 是否启用终态记录的进程内读缓存
}

// UserProverConfig 用户证明执行配置
type UserProverConfig struct {
	Curve               *string `json:"curve,omitempty"`
	MaxConcurrentProofs *int    `json:"max_concurrent_proofs,omitempty"`
	MaxQueuedJobs       *int    `json:"max_queued_jobs,omitempty"`
	ProofTimeout        *string `json:"proof_timeout,omitempty"`
	ParallelSetup       *bool   `json:"parallel_setup,omitempty"`
	KeysDir             *string `json:"keys_dir,omitempty"` // groth16 密钥持久化目录，为空时每次启动重新设置
}
