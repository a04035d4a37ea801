// Package config provides configuration provider interfaces.
package config

import (
	apiconfig "github.com/weisyn/rollup-prover/internal/config/api"
	logconfig "github.com/weisyn/rollup-prover/internal/config/log"
	proverconfig "github.com/weisyn/rollup-prover/internal/config/prover"
	storeconfig "github.com/weisyn/rollup-prover/internal/config/store"
	"github.com/weisyn/rollup-prover/pkg/types"
)

// AppOptions 应用配置选项接口
type AppOptions interface {
	// GetAppConfig 获取应用配置
	GetAppConfig() *types.AppConfig
}

// Provider 配置提供者接口
type Provider interface {
	// GetAPI 获取HTTP API配置
	GetAPI() *apiconfig.APIOptions

	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetStore 获取证明缓存配置
	GetStore() *storeconfig.StoreOptions

	// GetProver 获取证明执行配置
	GetProver() *proverconfig.ProverOptions
}
