package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/executor"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/core/prover/validator"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// Prover 生成阶段证明，由电路注册表实现
type Prover interface {
	Keys(stage rollup.Stage) (*engine.Keys, error)
	Prove(ctx context.Context, stage rollup.Stage, prevPisHash, witnessDigest common.Hash, publicInputs []byte) (*engine.Proof, error)
}

// proveJob 作业内的证明步骤
//
// send 未附带花费证明时先生成花费子证明；withdrawal 先生成单笔提现子证明。
// 子证明的公共输入摘要并入主证明的见证摘要，主证明因此承诺其依赖。
func proveJob(prover Prover, res *validator.Result) executor.ProveFunc {
	return func(ctx context.Context) (*engine.Proof, error) {
		digest := res.WitnessDigest

		if res.Spent != nil {
			spent := res.SpentProof
			if spent == nil {
				sub, err := proveSub(ctx, prover, rollup.StageSpent, res.PrevPisHash, digest, res.Spent)
				if err != nil {
					return nil, err
				}
				spent = sub
			}
			digest = rollup.MiMC(digest, spent.PisHash())
		}

		if res.SingleWithdrawal != nil {
			sub, err := proveSub(ctx, prover, rollup.StageSingleWithdrawal, common.Hash{}, digest, res.SingleWithdrawal)
			if err != nil {
				return nil, err
			}
			digest = rollup.MiMC(digest, sub.PisHash())
		}

		pis, err := json.Marshal(res.PublicInputs)
		if err != nil {
			return nil, proverr.WrapProvingError(res.Stage.String(), fmt.Errorf("encode public inputs: %w", err))
		}
		return prover.Prove(ctx, res.Stage, res.PrevPisHash, digest, pis)
	}
}

func proveSub(ctx context.Context, prover Prover, stage rollup.Stage, prev, digest common.Hash, pis any) (*engine.Proof, error) {
	data, err := json.Marshal(pis)
	if err != nil {
		return nil, proverr.WrapProvingError(stage.String(), fmt.Errorf("encode public inputs: %w", err))
	}
	return prover.Prove(ctx, stage, prev, digest, data)
}
