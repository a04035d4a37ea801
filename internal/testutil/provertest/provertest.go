// Package provertest 提供证明相关测试共享的注册表与协议夹具
package provertest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	proverconfig "github.com/weisyn/rollup-prover/internal/config/prover"
	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/registry"
	"github.com/weisyn/rollup-prover/internal/testutil"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

var (
	sharedOnce sync.Once
	shared     *registry.Registry
	sharedErr  error
)

// Registry 返回每个测试二进制只构建一次的就绪注册表
func Registry(t testing.TB) *registry.Registry {
	t.Helper()
	sharedOnce.Do(func() {
		shared, sharedErr = registry.New(&proverconfig.ProverOptions{Curve: "bn254", ParallelSetup: true}, testutil.NewTestLogger())
		if sharedErr == nil {
			sharedErr = shared.Build(context.Background())
		}
	})
	require.NoError(t, sharedErr)
	return shared
}

// UnreadyRegistry 返回尚未构建的注册表
func UnreadyRegistry(t testing.TB) *registry.Registry {
	t.Helper()
	r, err := registry.New(&proverconfig.ProverOptions{Curve: "bn254"}, testutil.NewTestLogger())
	require.NoError(t, err)
	return r
}

// Prove 直接以给定公共输入生成某阶段证明，用作前驱或依赖
func Prove(t testing.TB, stage rollup.Stage, prevPisHash common.Hash, pis any) *engine.Proof {
	t.Helper()
	data, err := json.Marshal(pis)
	require.NoError(t, err)
	proof, err := Registry(t).Prove(context.Background(), stage, prevPisHash, rollup.HashBytes([]byte(stage)), data)
	require.NoError(t, err)
	return proof
}

// Amount 构造金额
func Amount(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// Hash 由单字节构造哈希
func Hash(b byte) common.Hash {
	return common.BytesToHash([]byte{b})
}
