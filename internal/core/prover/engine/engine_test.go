package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

func TestParseCurve(t *testing.T) {
	id, err := ParseCurve("BN254")
	require.NoError(t, err)
	assert.Equal(t, ecc.BN254, id)

	id, err = ParseCurve("")
	require.NoError(t, err)
	assert.Equal(t, ecc.BN254, id)

	_, err = ParseCurve("bls12-381")
	assert.ErrorIs(t, err, ErrUnsupportedCurve)
}

func TestProveAndVerify(t *testing.T) {
	keys, err := Setup(rollup.StageDeposit, ecc.BN254)
	require.NoError(t, err)
	assert.Equal(t, rollup.StageDeposit, keys.Stage())
	assert.NotEqual(t, common.Hash{}, keys.Digest())
	assert.Greater(t, keys.NbConstraints(), 0)

	prev := common.HexToHash("0x1234")
	digest := rollup.HashBytes([]byte(`{"witness":1}`))
	pis := []byte(`{"pubkey":"0x01"}`)

	proof, err := keys.Prove(prev, digest, pis)
	require.NoError(t, err)
	require.NoError(t, keys.Verify(proof))
	assert.Equal(t, WitnessCommitment(rollup.StageDeposit, prev, digest, proof.PisHash()), proof.WitnessCommitment)

	t.Run("tampered public inputs", func(t *testing.T) {
		bad := *proof
		bad.PublicInputs = []byte(`{"pubkey":"0x02"}`)
		assert.ErrorIs(t, keys.Verify(&bad), ErrVerification)
	})

	t.Run("tampered predecessor hash", func(t *testing.T) {
		bad := *proof
		bad.PrevPisHash = common.HexToHash("0x9999")
		assert.ErrorIs(t, keys.Verify(&bad), ErrVerification)
	})

	t.Run("serialization round trip", func(t *testing.T) {
		raw, err := MarshalGroth16(proof.Groth16)
		require.NoError(t, err)
		g, err := keys.UnmarshalGroth16(raw)
		require.NoError(t, err)
		copied := *proof
		copied.Groth16 = g
		assert.NoError(t, keys.Verify(&copied))
	})

	t.Run("stage mismatch", func(t *testing.T) {
		other := *proof
		other.Stage = rollup.StageUpdate
		assert.ErrorIs(t, keys.Verify(&other), ErrStageMismatch)
	})
}

func TestVerifyingKeyDigestDiffersPerStage(t *testing.T) {
	a, err := Setup(rollup.StageValidity, ecc.BN254)
	require.NoError(t, err)
	b, err := Setup(rollup.StageSpent, ecc.BN254)
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest(), b.Digest())

	proof, err := a.Prove(common.Hash{}, common.Hash{}, []byte(`{}`))
	require.NoError(t, err)
	proof.Stage = rollup.StageSpent
	// 阶段标签不同，电路不同
	assert.Error(t, b.Verify(proof))
}

func TestDecodePublicInputs(t *testing.T) {
	p := &Proof{Stage: rollup.StageSpent, PublicInputs: []byte(`{"insufficientFlags":5}`)}
	pis, err := DecodePublicInputs[rollup.SpentPublicInputs](p)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), pis.InsufficientFlags)

	p.PublicInputs = []byte(`not json`)
	_, err = DecodePublicInputs[rollup.SpentPublicInputs](p)
	assert.Error(t, err)
}

func TestLoadOrSetupPersistsKeys(t *testing.T) {
	dir := t.TempDir()

	first, loaded, err := LoadOrSetup(rollup.StageDeposit, ecc.BN254, dir)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.FileExists(t, KeyFile(dir, rollup.StageDeposit, ecc.BN254))

	second, loaded, err := LoadOrSetup(rollup.StageDeposit, ecc.BN254, dir)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, first.Digest(), second.Digest())

	// 一个进程生成的证明可由重新加载密钥的进程验证，反之亦然
	proof, err := first.Prove(common.HexToHash("0x01"), common.HexToHash("0x02"), []byte(`{"a":1}`))
	require.NoError(t, err)
	require.NoError(t, second.Verify(proof))

	proof, err = second.Prove(common.Hash{}, common.HexToHash("0x03"), []byte(`{}`))
	require.NoError(t, err)
	assert.NoError(t, first.Verify(proof))
}

func TestLoadOrSetupWithoutDirDoesNotPersist(t *testing.T) {
	keys, loaded, err := LoadOrSetup(rollup.StageSpent, ecc.BN254, "")
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.NotEqual(t, common.Hash{}, keys.Digest())
}

func TestLoadRejectsBadKeyFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(rollup.StageSpent, ecc.BN254, KeyFile(dir, rollup.StageSpent, ecc.BN254))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.keys")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key file"), 0600))
	_, err = Load(rollup.StageSpent, ecc.BN254, garbage)
	assert.ErrorIs(t, err, ErrKeyFileCorrupt)

	// 其他阶段的密钥文件头部合法，但截断后必须报损坏
	_, _, err = LoadOrSetup(rollup.StageSpent, ecc.BN254, dir)
	require.NoError(t, err)
	path := KeyFile(dir, rollup.StageSpent, ecc.BN254)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.keys")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0600))
	_, err = Load(rollup.StageSpent, ecc.BN254, truncated)
	assert.ErrorIs(t, err, ErrKeyFileCorrupt)
}
