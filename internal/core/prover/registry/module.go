package registry

import (
	"context"

	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/pkg/interfaces/config"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ModuleParams 注册表依赖
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Logger    log.Logger
}

// Module 电路注册表模块
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(ProvideRegistry),
	)
}

// ProvideRegistry 创建注册表并在启动时开始后台构建
func ProvideRegistry(params ModuleParams) (*Registry, error) {
	r, err := New(params.Config.GetProver(), params.Logger.With("module", "registry"))
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
	})
	return r, nil
}
