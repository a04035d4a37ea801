// Package api 提供HTTP API服务配置
package api

import (
	"time"

	"github.com/weisyn/rollup-prover/pkg/types"
)

// APIOptions API服务配置选项
type APIOptions struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxRequestBytes int64         `json:"max_request_bytes"`
	EnableMetrics   bool          `json:"enable_metrics"`
	MaxBatchIDs     int           `json:"max_batch_ids"`
	ReadRateLimit   int           `json:"read_rate_limit"`
	WriteRateLimit  int           `json:"write_rate_limit"`
}

// Config API配置实现
type Config struct {
	options *APIOptions
}

// New 创建API配置实现
func New(userConfig *types.UserAPIConfig) *Config {
	options := &APIOptions{
		Host:            defaultHTTPHost,
		Port:            defaultHTTPPort,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		IdleTimeout:     defaultIdleTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		MaxRequestBytes: defaultMaxRequestBytes,
		EnableMetrics:   defaultEnableMetrics,
		MaxBatchIDs:     defaultMaxBatchIDs,
		ReadRateLimit:   defaultReadRateLimit,
		WriteRateLimit:  defaultWriteRateLimit,
	}
	if userConfig != nil {
		convertAndMergeUserConfig(options, userConfig)
	}
	return &Config{options: options}
}

func convertAndMergeUserConfig(options *APIOptions, user *types.UserAPIConfig) {
	if user.HTTPHost != nil {
		options.Host = *user.HTTPHost
	}
	if user.HTTPPort != nil && *user.HTTPPort > 0 {
		options.Port = *user.HTTPPort
	}
	if user.ReadTimeout != nil {
		if d, err := time.ParseDuration(*user.ReadTimeout); err == nil {
			options.ReadTimeout = d
		}
	}
	if user.WriteTimeout != nil {
		if d, err := time.ParseDuration(*user.WriteTimeout); err == nil {
			options.WriteTimeout = d
		}
	}
	if user.MaxRequestBytes != nil && *user.MaxRequestBytes > 0 {
		options.MaxRequestBytes = *user.MaxRequestBytes
	}
	if user.EnableMetrics != nil {
		options.EnableMetrics = *user.EnableMetrics
	}
	if user.MaxBatchIDs != nil && *user.MaxBatchIDs > 0 {
		options.MaxBatchIDs = *user.MaxBatchIDs
	}
	if user.ReadRateLimit != nil && *user.ReadRateLimit >= 0 {
		options.ReadRateLimit = *user.ReadRateLimit
	}
	if user.WriteRateLimit != nil && *user.WriteRateLimit >= 0 {
		options.WriteRateLimit = *user.WriteRateLimit
	}
}

// GetOptions 获取API配置选项
func (c *Config) GetOptions() *APIOptions {
	return c.options
}
