package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/internal/api"
	config "github.com/weisyn/rollup-prover/internal/config"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/clock"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/event"
	log "github.com/weisyn/rollup-prover/internal/core/infrastructure/log"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/metrics"
	"github.com/weisyn/rollup-prover/internal/core/prover/executor"
	"github.com/weisyn/rollup-prover/internal/core/prover/pipeline"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/internal/core/prover/registry"
	configiface "github.com/weisyn/rollup-prover/pkg/interfaces/config"
)

// Bootstrap 应用引导器
//
// 模块按层组织：
//   - 基础设施层：配置、日志、时钟、事件、指标
//   - 证明层：证明缓存、电路注册表、作业执行器、阶段流水线
//   - 应用层：HTTP API
//
// fx 按依赖顺序构造并启动，停止时逆序执行：HTTP 先停止接收请求，
// 执行器再把排队作业写成 failed 并等待运行中的作业，最后关闭存储。
type Bootstrap struct {
	opts  *options
	fxApp *fx.App
}

// NewBootstrap 创建引导器
func NewBootstrap(opts *options) *Bootstrap {
	return &Bootstrap{opts: opts}
}

// SetupInfrastructureLayer 基础设施层
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	return []fx.Option{
		fx.Provide(func() configiface.AppOptions { return b.opts }),
		config.Module(),
		log.Module(),
		clock.Module(),
		event.Module(),
		metrics.Module(),
	}
}

// SetupProverLayer 证明层
func (b *Bootstrap) SetupProverLayer() []fx.Option {
	return []fx.Option{
		proofcache.Module(),
		registry.Module(),
		executor.Module(),
		pipeline.Module(),
	}
}

// SetupApplicationLayer 应用层
func (b *Bootstrap) SetupApplicationLayer() []fx.Option {
	if !b.opts.enableAPI {
		fmt.Println("⚠️  API模块已禁用")
		return nil
	}
	return []fx.Option{api.Module()}
}

// SetupModules 汇总所有模块
func (b *Bootstrap) SetupModules() []fx.Option {
	var modules []fx.Option
	modules = append(modules, b.SetupInfrastructureLayer()...)
	modules = append(modules, b.SetupProverLayer()...)
	modules = append(modules, b.SetupApplicationLayer()...)
	return modules
}

// CreateFxApp 创建 fx 应用并校验依赖图
func (b *Bootstrap) CreateFxApp() error {
	b.fxApp = fx.New(
		fx.Options(b.SetupModules()...),
		fx.NopLogger,
	)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("构建依赖图失败: %w", err)
	}
	return nil
}

// StartApp 启动应用
func (b *Bootstrap) StartApp(ctx context.Context) error {
	if err := b.fxApp.Start(ctx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}
	return nil
}

// StopApp 停止应用
func (b *Bootstrap) StopApp(ctx context.Context) error {
	if err := b.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}
