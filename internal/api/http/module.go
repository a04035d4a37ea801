package http

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/internal/app/version"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/metrics"
	"github.com/weisyn/rollup-prover/internal/core/prover/executor"
	"github.com/weisyn/rollup-prover/internal/core/prover/pipeline"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/internal/core/prover/registry"
	"github.com/weisyn/rollup-prover/pkg/interfaces/config"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ModuleParams HTTP 模块依赖
type ModuleParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Config       config.Provider
	Logger       log.Logger
	Clock        clock.Clock
	Service      *pipeline.Service
	Store        proofcache.Store
	Registry     *registry.Registry
	Executor     *executor.Executor
	Prometheus   *prometheus.Registry
	MemoryDoctor *metrics.MemoryDoctor `optional:"true"`
}

// initializeGinMode 非 debug 日志级别下关闭 gin 的调试输出
func initializeGinMode(cfg config.Provider) {
	if cfg.GetLog().Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = io.Discard
	}
}

// Module 返回HTTP服务模块
func Module() fx.Option {
	return fx.Module("http",
		fx.Invoke(initializeGinMode),
		fx.Provide(ProvideServer),
		// 确保服务器被实例化并挂上生命周期
		fx.Invoke(func(*Server) {}),
	)
}

// ProvideServer 创建HTTP服务器，随 fx 生命周期启停
func ProvideServer(params ModuleParams) (*Server, error) {
	logger := params.Logger.With("module", "http")
	server, err := NewServer(Dependencies{
		Options:  params.Config.GetAPI(),
		Logger:   logger,
		Clock:    params.Clock,
		Version:  version.GetVersion(),
		Proofs:   params.Service,
		Store:    params.Store,
		Registry: params.Registry,
		Executor: params.Executor,
		Memory:   params.MemoryDoctor,
		Gatherer: params.Prometheus,
		Metrics:  params.Prometheus,
	})
	if err != nil {
		return nil, err
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			return server.Stop(ctx)
		},
	})
	return server, nil
}
