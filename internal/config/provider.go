package config

import (
	"os"
	"strconv"

	"github.com/weisyn/rollup-prover/internal/config/api"
	"github.com/weisyn/rollup-prover/internal/config/log"
	"github.com/weisyn/rollup-prover/internal/config/prover"
	"github.com/weisyn/rollup-prover/internal/config/store"
	"github.com/weisyn/rollup-prover/pkg/interfaces/config"
	"github.com/weisyn/rollup-prover/pkg/types"
)

// 环境变量覆盖（容器部署时常用）
const (
	EnvRedisAddr = "PROVER_REDIS_ADDR"
	EnvHTTPPort  = "PROVER_HTTP_PORT"
)

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig
}

// NewProvider 创建配置提供者
func NewProvider(appConfig *types.AppConfig) config.Provider {
	if appConfig == nil {
		appConfig = &types.AppConfig{}
	}
	return &Provider{appConfig: appConfig}
}

// GetAPI 获取API服务配置
func (p *Provider) GetAPI() *api.APIOptions {
	options := api.New(p.appConfig.API).GetOptions()
	if v := os.Getenv(EnvHTTPPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			options.Port = port
		}
	}
	return options
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *log.LogOptions {
	return log.New(p.appConfig.Log).GetOptions()
}

// GetStore 获取证明缓存配置
func (p *Provider) GetStore() *store.StoreOptions {
	options := store.New(p.appConfig.Store).GetOptions()
	if v := os.Getenv(EnvRedisAddr); v != "" {
		options.RedisAddr = v
	}
	return options
}

// GetProver 获取证明执行配置
func (p *Provider) GetProver() *prover.ProverOptions {
	return prover.New(p.appConfig.Prover).GetOptions()
}
