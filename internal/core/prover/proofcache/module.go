package proofcache

import (
	"context"

	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/pkg/interfaces/config"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ModuleParams 证明缓存依赖
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Logger    log.Logger
	Clock     clock.Clock
}

// Module 证明缓存模块
func Module() fx.Option {
	return fx.Module("proofcache",
		fx.Provide(ProvideStore),
	)
}

// ProvideStore 按配置创建证明缓存，停止时关闭
func ProvideStore(params ModuleParams) (Store, error) {
	store, err := New(params.Config.GetStore(), params.Logger.With("module", "proofcache"), params.Clock)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}
