package pipeline

import (
	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/internal/core/prover/codec"
	"github.com/weisyn/rollup-prover/internal/core/prover/executor"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/internal/core/prover/registry"
	"github.com/weisyn/rollup-prover/internal/core/prover/validator"
	"github.com/weisyn/rollup-prover/pkg/interfaces/config"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ModuleParams 流水线依赖
type ModuleParams struct {
	fx.In

	Config    config.Provider
	Validator *validator.Validator
	Registry  *registry.Registry
	Store     proofcache.Store
	Executor  *executor.Executor
	Logger    log.Logger
	Clock     clock.Clock
}

// Module 阶段流水线模块，同时提供编解码器与校验器
func Module() fx.Option {
	return fx.Module("pipeline",
		fx.Provide(
			func(r *registry.Registry) *codec.Codec { return codec.New(r) },
			func(c *codec.Codec, r *registry.Registry) *validator.Validator { return validator.New(c, r) },
			ProvideService,
		),
	)
}

// ProvideService 创建流水线
func ProvideService(params ModuleParams) *Service {
	return New(
		params.Validator,
		params.Registry,
		params.Store,
		params.Executor,
		params.Config.GetStore().ProofExpiration,
		params.Logger.With("module", "pipeline"),
		params.Clock,
	)
}
