package executor

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/internal/core/prover/codec"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/pkg/interfaces/config"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ModuleParams 执行器依赖
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Store     proofcache.Store
	Codec     *codec.Codec
	EventBus  event.EventBus
	Registry  prometheus.Registerer
	Logger    log.Logger
	Clock     clock.Clock
}

// Module 作业执行器模块
func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(ProvideExecutor),
	)
}

// ProvideExecutor 创建执行器，挂接事件订阅与生命周期
func ProvideExecutor(params ModuleParams) (*Executor, error) {
	logger := params.Logger.With("module", "executor")
	e, err := New(params.Config.GetProver(), params.Config.GetStore().ProofExpiration,
		params.Store, params.Codec, params.EventBus, logger, params.Clock)
	if err != nil {
		return nil, err
	}
	if err := SubscribeMetrics(params.EventBus, NewMetrics(params.Registry)); err != nil {
		return nil, err
	}
	if err := SubscribeLogger(params.EventBus, logger); err != nil {
		return nil, err
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			e.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Stop(ctx)
		},
	})
	return e, nil
}
