// Package metrics 提供 Prometheus 注册表与内存采样
//
// 各模块的指标都注册到同一个 *prometheus.Registry，由 HTTP 层的 /metrics 导出；
// 测试中各自创建独立注册表，避免全局重复注册。
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module 返回 metrics 模块的 fx.Option
//
// 提供：
// - *prometheus.Registry 及其 prometheus.Registerer 视图
// - MemoryDoctor: 内存采样组件
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			NewRegistry,
			func(reg *prometheus.Registry) prometheus.Registerer { return reg },
			NewMemoryDoctorProvider,
		),
		fx.Invoke(StartMemoryDoctor),
	)
}

// NewRegistry 创建带 Go 运行时与进程采集器的注册表
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MemoryDoctorProviderInput 定义 MemoryDoctor 的输入依赖
type MemoryDoctorProviderInput struct {
	fx.In

	Registry *prometheus.Registry
	Logger   *zap.Logger `optional:"true"`
}

// NewMemoryDoctorProvider 创建 MemoryDoctor 实例
func NewMemoryDoctorProvider(input MemoryDoctorProviderInput) *MemoryDoctor {
	var logger *zap.Logger
	if input.Logger != nil {
		logger = input.Logger.With(zap.String("module", "metrics"))
	}
	return NewMemoryDoctor(input.Registry, 0, logger)
}

// StartMemoryDoctor 启动 MemoryDoctor 的生命周期管理
func StartMemoryDoctor(lifecycle fx.Lifecycle, memoryDoctor *MemoryDoctor) {
	// OnStart 的 ctx 在返回后即取消，采样循环使用独立 ctx
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				memoryDoctor.SampleOnce()
				memoryDoctor.Start(ctx)
			}()
			memoryDoctor.logger.Info("✅ MemoryDoctor 已启动")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			memoryDoctor.logger.Info("✅ MemoryDoctor 已停止")
			return nil
		},
	})
}
