// Package event 提供事件管理功能
package event

import (
	"context"

	"go.uber.org/fx"

	eventInterface "github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ModuleInput 事件模块输入依赖
type ModuleInput struct {
	fx.In

	Logger    log.Logger `optional:"true"`
	Lifecycle fx.Lifecycle
}

// ModuleOutput 事件模块输出服务
type ModuleOutput struct {
	fx.Out

	EventBus eventInterface.EventBus
}

// Module 返回事件模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(ProvideEventBus),
	)
}

// ProvideEventBus 创建事件总线，停止时记录事件计数
func ProvideEventBus(input ModuleInput) ModuleOutput {
	bus := New()
	input.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if input.Logger != nil {
				published, dropped := bus.Counts()
				input.Logger.Infof("✅ 事件总线已停止: published=%d, dropped=%d", published, dropped)
			}
			return nil
		},
	})
	return ModuleOutput{EventBus: bus}
}
