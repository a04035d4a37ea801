package codec

import (
	"encoding/base64"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/testutil/provertest"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

func TestRoundTrip(t *testing.T) {
	reg := provertest.Registry(t)
	c := New(reg)

	pis := rollup.GenesisBalancePublicInputs(provertest.Hash(7))
	proof := provertest.Prove(t, rollup.StageDeposit, provertest.Hash(1), pis)

	encoded, err := c.Encode(proof)
	require.NoError(t, err)
	_, err = base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	decoded, err := c.Decode(encoded, rollup.BalanceStages()...)
	require.NoError(t, err)
	assert.Equal(t, rollup.StageDeposit, decoded.Stage)
	assert.Equal(t, proof.PrevPisHash, decoded.PrevPisHash)
	assert.Equal(t, proof.WitnessCommitment, decoded.WitnessCommitment)
	assert.Equal(t, proof.PublicInputs, decoded.PublicInputs)
	require.NoError(t, reg.Verify(decoded))

	// 再编码结果稳定
	again, err := c.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, again)
}

func TestDecodeRejectsForeignDigest(t *testing.T) {
	reg := provertest.Registry(t)
	c := New(reg)

	proof := provertest.Prove(t, rollup.StageValidity, provertest.Hash(0), rollup.GenesisValidityPublicInputs())
	encoded, err := c.Encode(proof)
	require.NoError(t, err)

	_, err = c.Decode(encoded, rollup.BalanceStages()...)
	assert.ErrorIs(t, err, proverr.ErrDigestMismatch)
	assert.True(t, proverr.IsClient(err))

	_, err = c.Decode(encoded, rollup.StageValidity)
	assert.NoError(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	c := New(provertest.Registry(t))

	cases := map[string]string{
		"empty":       "",
		"not base64":  "%%%",
		"not snappy":  base64.StdEncoding.EncodeToString([]byte{0xff, 0xff, 0xff, 0xff, 0xff}),
		"short":       base64.StdEncoding.EncodeToString(snappy.Encode(nil, []byte{1, 2, 3})),
		"only digest": base64.StdEncoding.EncodeToString(snappy.Encode(nil, make([]byte, 32))),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(in, rollup.StageDeposit)
			require.Error(t, err)
			assert.True(t, proverr.IsClient(err), err.Error())
		})
	}
}

func TestDecodeTruncatedAndTrailing(t *testing.T) {
	reg := provertest.Registry(t)
	c := New(reg)
	proof := provertest.Prove(t, rollup.StageSpent, provertest.Hash(0), rollup.SpentPublicInputs{})
	encoded, err := c.Encode(proof)
	require.NoError(t, err)

	compressed, _ := base64.StdEncoding.DecodeString(encoded)
	raw, err := snappy.Decode(nil, compressed)
	require.NoError(t, err)

	truncated := base64.StdEncoding.EncodeToString(snappy.Encode(nil, raw[:len(raw)-3]))
	_, err = c.Decode(truncated, rollup.StageSpent)
	assert.ErrorIs(t, err, proverr.ErrMalformedProof)

	trailing := base64.StdEncoding.EncodeToString(snappy.Encode(nil, append(raw, 0x00)))
	_, err = c.Decode(trailing, rollup.StageSpent)
	assert.ErrorIs(t, err, proverr.ErrMalformedProof)
}

func TestCodecFailsClosedWhenNotReady(t *testing.T) {
	ready := New(provertest.Registry(t))
	proof := provertest.Prove(t, rollup.StageDeposit, provertest.Hash(0), rollup.GenesisBalancePublicInputs(provertest.Hash(1)))
	encoded, err := ready.Encode(proof)
	require.NoError(t, err)

	c := New(provertest.UnreadyRegistry(t))
	_, err = c.Decode(encoded, rollup.StageDeposit)
	assert.ErrorIs(t, err, proverr.ErrNotReady)
	_, err = c.Encode(proof)
	assert.ErrorIs(t, err, proverr.ErrNotReady)
}
