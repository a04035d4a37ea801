// Package engine 封装 gnark groth16 证明引擎
//
// 每个阶段对应一个绑定电路：电路证明者知道某个见证摘要，使得
// WitnessCommitment == MiMC(tag, PrevPisHash, WitnessDigest, PisHash)。
// 证明因此把「前驱公共输入」「本阶段公共输入」「见证内容」绑定在一起，
// 协议层的业务规则由 validator 在链下重新推导。
package engine

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// StageCircuit 阶段绑定电路
type StageCircuit struct {
	// 阶段标签（编译期常量）
	Tag uint64 `gnark:"-"`

	// 公开输入
	PrevPisHash       frontend.Variable `gnark:",public"`
	PisHash           frontend.Variable `gnark:",public"`
	WitnessCommitment frontend.Variable `gnark:",public"`

	// 私有输入
	WitnessDigest frontend.Variable
}

// Define 定义电路约束
func (c *StageCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("初始化MiMC失败: %w", err)
	}
	h.Write(c.Tag, c.PrevPisHash, c.WitnessDigest, c.PisHash)
	api.AssertIsEqual(h.Sum(), c.WitnessCommitment)
	return nil
}

// WitnessCommitment 链下计算与电路一致的见证承诺
func WitnessCommitment(stage rollup.Stage, prevPisHash, witnessDigest, pisHash common.Hash) common.Hash {
	return rollup.MiMC(rollup.U64(stage.Tag()), prevPisHash, witnessDigest, pisHash)
}

// assignment 构建电路赋值
func assignment(stage rollup.Stage, prevPisHash, witnessDigest, pisHash, commitment common.Hash) *StageCircuit {
	return &StageCircuit{
		Tag:               stage.Tag(),
		PrevPisHash:       fieldValue(prevPisHash),
		PisHash:           fieldValue(pisHash),
		WitnessCommitment: fieldValue(commitment),
		WitnessDigest:     fieldValue(witnessDigest),
	}
}

func fieldValue(h common.Hash) *big.Int {
	return new(big.Int).SetBytes(rollup.Reduce(h).Bytes())
}
