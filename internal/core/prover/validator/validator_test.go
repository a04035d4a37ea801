package validator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/rollup-prover/internal/core/prover/codec"
	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/testutil/provertest"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

type fixture struct {
	t     *testing.T
	codec *codec.Codec
	v     *Validator
	chain *provertest.Chain
}

func newFixture(t *testing.T) *fixture {
	reg := provertest.Registry(t)
	c := codec.New(reg)
	return &fixture{t: t, codec: c, v: New(c, reg), chain: provertest.NewChain()}
}

func (f *fixture) encode(p *engine.Proof) string {
	return provertest.Encode(f.t, f.codec, p)
}

func (f *fixture) input(stage rollup.Stage, subject string, witness any) *Input {
	data, err := json.Marshal(witness)
	require.NoError(f.t, err)
	return &Input{Stage: stage, Subject: subject, Witness: data}
}

// ============================================================================
// 通用
// ============================================================================

func TestValidateRejectsUnsupportedStage(t *testing.T) {
	f := newFixture(t)
	_, err := f.v.Validate(f.input(rollup.StageSingleWithdrawal, provertest.Hash(1).Hex(), struct{}{}))
	assert.ErrorIs(t, err, proverr.ErrUnsupportedStage)
	assert.False(t, f.v.Supports(rollup.StageSingleWithdrawal))
	assert.True(t, f.v.Supports(rollup.StageSend))
}

func TestValidateRejectsBadSubject(t *testing.T) {
	f := newFixture(t)
	cases := map[rollup.Stage]string{
		rollup.StageDeposit:  "abc",
		rollup.StageSpent:    "0x1234",
		rollup.StageValidity: "chain/with/slash",
	}
	for stage, subject := range cases {
		_, err := f.v.Validate(f.input(stage, subject, struct{}{}))
		assert.ErrorIs(t, err, proverr.ErrInvalidSubject, "%s %s", stage, subject)
	}
}

func TestValidateRequiresWitness(t *testing.T) {
	f := newFixture(t)
	_, err := f.v.Validate(&Input{Stage: rollup.StageDeposit, Subject: provertest.Hash(1).Hex()})
	assert.ErrorIs(t, err, proverr.ErrMalformedWitness)

	in := &Input{Stage: rollup.StageDeposit, Subject: provertest.Hash(1).Hex(), Witness: json.RawMessage(`{"depositWitness": 7}`)}
	_, err = f.v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrMalformedWitness)
}

// ============================================================================
// 存款
// ============================================================================

func TestDepositFromGenesis(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(1)
	dc := provertest.NewDepositCase(f.chain, acct, 0, 100)

	in := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), dc.Witness)
	in.PublicState = &dc.State
	res, err := f.v.Validate(in)
	require.NoError(t, err)

	assert.Equal(t, rollup.StageDeposit, res.Stage)
	assert.Equal(t, dc.Witness.DepositWitness.Deposit.LeafHash().Hex(), res.RequestID)
	assert.Nil(t, res.Prev)
	assert.Equal(t, common.Hash{}, res.PrevPisHash)
	assert.NotEqual(t, common.Hash{}, res.WitnessDigest)

	pis, ok := res.PublicInputs.(rollup.BalancePublicInputs)
	require.True(t, ok)
	assert.Equal(t, acct.Pubkey, pis.Pubkey)
	assert.Equal(t, acct.State.Commitment(), pis.PrivateCommitment)
	assert.Equal(t, dc.State, pis.PublicState)

	// 同一见证的摘要稳定
	again, err := f.v.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, res.WitnessDigest, again.WitnessDigest)
}

func TestDepositWithoutClaimedStateUsesGenesis(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(1)
	dc := provertest.NewDepositCase(f.chain, acct, 0, 100)

	// 创世存款树为空，存款不在其中
	_, err := f.v.Validate(f.input(rollup.StageDeposit, acct.Pubkey.Hex(), dc.Witness))
	assert.ErrorIs(t, err, proverr.ErrInvalidInclusionProof)
}

func TestDepositConsistencyChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *rollup.ReceiveDepositWitness)
		want   error
	}{
		{
			name:   "bad nullifier",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.PrivateWitness.Nullifier = provertest.Hash(0x42) },
			want:   proverr.ErrNullifierMismatch,
		},
		{
			name:   "wrong amount",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.PrivateWitness.Amount = provertest.Amount(99) },
			want:   proverr.ErrAmountMismatch,
		},
		{
			name:   "wrong salt",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.DepositSalt = provertest.Hash(0x43) },
			want:   proverr.ErrRecipientMismatch,
		},
		{
			name:   "private state does not chain",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.PrivateWitness.PrevPrivateState.Salt = provertest.Hash(0x44) },
			want:   proverr.ErrCommitmentMismatch,
		},
		{
			name: "short asset proof",
			mutate: func(w *rollup.ReceiveDepositWitness) {
				w.PrivateWitness.AssetMerkleProof.Siblings = w.PrivateWitness.AssetMerkleProof.Siblings[1:]
			},
			want: proverr.ErrFixedWidth,
		},
		{
			name:   "missing nullifier proof",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.PrivateWitness.NullifierProof = rollup.MerkleProof{} },
			want:   proverr.ErrFixedWidth,
		},
		{
			name:   "amount aliased past field modulus",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.PrivateWitness.Amount = aliased(100) },
			want:   proverr.ErrAmountOutOfField,
		},
		{
			name:   "deposit amount aliased past field modulus",
			mutate: func(w *rollup.ReceiveDepositWitness) { w.DepositWitness.Deposit.Amount = aliased(100) },
			want:   proverr.ErrAmountOutOfField,
		},
		{
			name: "prev asset leaf aliased past field modulus",
			mutate: func(w *rollup.ReceiveDepositWitness) {
				w.PrivateWitness.PrevAssetLeaf.Amount = aliased(0)
			},
			want: proverr.ErrAmountOutOfField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			acct := provertest.NewAccount(1)
			dc := provertest.NewDepositCase(f.chain, acct, 0, 100)
			tt.mutate(&dc.Witness)

			in := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), dc.Witness)
			in.PublicState = &dc.State
			_, err := f.v.Validate(in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, proverr.IsClient(err))
		})
	}
}

func TestDepositChainsOnPredecessor(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(1)

	salt1, salt2 := provertest.Hash(0x61), provertest.Hash(0x62)
	d1 := f.chain.AddDeposit(acct.Pubkey, salt1, 0, 10)
	d2 := f.chain.AddDeposit(acct.Pubkey, salt2, 1, 20)
	f.chain.PostBlock()
	state := f.chain.State

	w1 := rollup.ReceiveDepositWitness{
		DepositWitness: f.chain.DepositProof(d1),
		DepositSalt:    salt1,
		PrivateWitness: acct.Receive(0, d1.Deposit.Amount, d1.Deposit.Nullifier()),
	}
	in1 := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), w1)
	in1.PublicState = &state
	res1, err := f.v.Validate(in1)
	require.NoError(t, err)
	prev := provertest.Prove(t, rollup.StageDeposit, res1.PrevPisHash, res1.PublicInputs)

	w2 := rollup.ReceiveDepositWitness{
		DepositWitness: f.chain.DepositProof(d2),
		DepositSalt:    salt2,
		PrivateWitness: acct.Receive(1, d2.Deposit.Amount, d2.Deposit.Nullifier()),
	}
	in2 := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), w2)
	in2.PrevProof = f.encode(prev)
	res2, err := f.v.Validate(in2)
	require.NoError(t, err)
	assert.Equal(t, prev.PisHash(), res2.PrevPisHash)
	assert.Equal(t, acct.State.Commitment(), res2.PublicInputs.(rollup.BalancePublicInputs).PrivateCommitment)

	// 声明的公共状态与前驱不一致
	other := state
	other.BlockNumber++
	in2.PublicState = &other
	_, err = f.v.Validate(in2)
	assert.ErrorIs(t, err, proverr.ErrPublicStateMismatch)

	// 主体不是存款接收方
	in3 := f.input(rollup.StageDeposit, provertest.NewAccount(9).Pubkey.Hex(), w2)
	in3.PrevProof = f.encode(prev)
	_, err = f.v.Validate(in3)
	assert.ErrorIs(t, err, proverr.ErrRecipientMismatch)

	// 前驱不是余额链证明
	in2.PublicState = nil
	in2.PrevProof = f.encode(provertest.Prove(t, rollup.StageWithdrawal, common.Hash{}, rollup.WithdrawalPublicInputs{}))
	_, err = f.v.Validate(in2)
	assert.ErrorIs(t, err, proverr.ErrInvalidPredecessorProof)
}

// aliased 返回 v+p：与 v 在标量域内同值的 256 位金额
func aliased(v uint64) *uint256.Int {
	return new(uint256.Int).AddUint64(uint256.MustFromBig(fr.Modulus()), v)
}

func TestDepositRejectsFieldAliasedAmount(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(1)
	dc := provertest.NewDepositCase(f.chain, acct, 0, 5)

	// 存款 5，见证声称 5+p；哈希不可区分，必须在范围检查处拒绝
	w := dc.Witness
	w.DepositWitness.Deposit.Amount = aliased(5)
	w.PrivateWitness.Amount = aliased(5)
	require.Equal(t, dc.Witness.DepositWitness.Deposit.LeafHash(), w.DepositWitness.Deposit.LeafHash())

	in := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), w)
	in.PublicState = &dc.State
	_, err := f.v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrAmountOutOfField)
	assert.True(t, proverr.IsClient(err))
}

func TestDepositCannotBeReceivedTwice(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(1)
	dc := provertest.NewDepositCase(f.chain, acct, 0, 100)

	in1 := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), dc.Witness)
	in1.PublicState = &dc.State
	res1, err := f.v.Validate(in1)
	require.NoError(t, err)
	prev := provertest.Prove(t, rollup.StageDeposit, res1.PrevPisHash, res1.PublicInputs)

	// 同一存款再次折叠进已包含其 nullifier 的私有状态
	d := dc.Witness.DepositWitness.Deposit
	w2 := dc.Witness
	w2.PrivateWitness = acct.Transition(d.TokenIndex, d.Amount, d.Nullifier())
	in2 := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), w2)
	in2.PrevProof = f.encode(prev)
	_, err = f.v.Validate(in2)
	assert.ErrorIs(t, err, proverr.ErrNullifierUsed)
	assert.True(t, proverr.IsClient(err))

	// 换用旧 nullifier 根给出路径：前一私有状态承诺与前驱不符
	w3 := w2
	w3.PrivateWitness.PrevPrivateState.NullifierRoot = rollup.GenesisPrivateState().NullifierRoot
	w3.PrivateWitness.NullifierProof = rollup.NewSparseMerkleTree(rollup.NullifierTreeHeight).Prove(rollup.NullifierIndex(d.Nullifier()))
	in3 := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), w3)
	in3.PrevProof = f.encode(prev)
	_, err = f.v.Validate(in3)
	assert.ErrorIs(t, err, proverr.ErrCommitmentMismatch)
}

// ============================================================================
// 花费：定宽
// ============================================================================

func TestSpentFixedWidth(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(3)
	w := acct.Spend()
	require.Len(t, w.Transfers, rollup.NumTransfersInTx)

	res, err := f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), w))
	require.NoError(t, err)
	assert.Equal(t, w.Tx.Hash().Hex(), res.RequestID)

	short := w
	short.Transfers = w.Transfers[:rollup.NumTransfersInTx-1]
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), short))
	assert.ErrorIs(t, err, proverr.ErrFixedWidth)

	long := w
	long.Transfers = append(append([]rollup.Transfer{}, w.Transfers...), rollup.Transfer{Amount: provertest.Amount(0)})
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), long))
	assert.ErrorIs(t, err, proverr.ErrFixedWidth)

	proofs := w
	proofs.AssetMerkleProofs = w.AssetMerkleProofs[:rollup.NumTransfersInTx-1]
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), proofs))
	assert.ErrorIs(t, err, proverr.ErrFixedWidth)
}

func TestSpentMarksInsufficientTransfer(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(3)
	acct.Receive(0, provertest.Amount(5), provertest.Hash(0x10))
	// 第一笔余额不足，第二笔足额
	g := rollup.GenesisBalancePublicInputs(acct.Pubkey)
	g.PrivateCommitment = acct.State.Commitment()
	prev := provertest.Prove(t, rollup.StageDeposit, common.Hash{}, g)

	w := acct.Spend(
		rollup.Transfer{Recipient: provertest.Hash(0x20), TokenIndex: 0, Amount: provertest.Amount(50)},
		rollup.Transfer{Recipient: provertest.Hash(0x21), TokenIndex: 0, Amount: provertest.Amount(4)},
	)
	in := f.input(rollup.StageSpent, acct.Pubkey.Hex(), w)
	in.PrevProof = f.encode(prev)
	res, err := f.v.Validate(in)
	require.NoError(t, err)

	spent := res.PublicInputs.(rollup.SpentPublicInputs)
	assert.True(t, rollup.IsInsufficient(spent.InsufficientFlags, 0))
	assert.False(t, rollup.IsInsufficient(spent.InsufficientFlags, 1))
	assert.Equal(t, acct.State.Commitment(), spent.NewPrivateCommitment)
	assert.Equal(t, uint64(1), acct.Balance(0))
}

func TestSpentRejectsTamperedWitness(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(3)
	w := acct.Spend()

	nonce := w
	nonce.Tx.Nonce = 5
	_, err := f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), nonce))
	assert.ErrorIs(t, err, proverr.ErrNonceMismatch)

	balances := w
	balances.PrevBalances = append([]rollup.AssetLeaf{{Amount: provertest.Amount(1)}}, w.PrevBalances[1:]...)
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), balances))
	assert.ErrorIs(t, err, proverr.ErrInvalidInclusionProof)

	root := w
	root.Tx.TransferTreeRoot = provertest.Hash(0x99)
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), root))
	assert.ErrorIs(t, err, proverr.ErrInvalidInclusionProof)

	inflated := w
	inflated.PrevBalances = append([]rollup.AssetLeaf{{Amount: aliased(0)}}, w.PrevBalances[1:]...)
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), inflated))
	assert.ErrorIs(t, err, proverr.ErrAmountOutOfField)

	transfer := w
	transfer.Transfers = append([]rollup.Transfer{{Amount: aliased(1)}}, w.Transfers[1:]...)
	_, err = f.v.Validate(f.input(rollup.StageSpent, acct.Pubkey.Hex(), transfer))
	assert.ErrorIs(t, err, proverr.ErrAmountOutOfField)
}

// ============================================================================
// 区块有效性 / 更新
// ============================================================================

func TestValidityChain(t *testing.T) {
	f := newFixture(t)
	a, b := provertest.NewAccount(1), provertest.NewAccount(2)

	b1 := f.chain.PostBlock(provertest.SenderTx{Pubkey: a.Pubkey, Tx: a.Spend().Tx})
	res1, err := f.v.Validate(f.input(rollup.StageValidity, "testnet", b1.Witness))
	require.NoError(t, err)
	assert.Equal(t, b1.ValidityPIs, res1.PublicInputs)
	assert.Equal(t, b1.Witness.Block.Hash().Hex(), res1.RequestID)
	prev := provertest.Prove(t, rollup.StageValidity, common.Hash{}, res1.PublicInputs)

	b2 := f.chain.PostBlock(
		provertest.SenderTx{Pubkey: a.Pubkey, Tx: a.Spend().Tx},
		provertest.SenderTx{Pubkey: b.Pubkey, Tx: b.Spend().Tx},
	)
	in := f.input(rollup.StageValidity, "testnet", b2.Witness)
	in.PrevProof = f.encode(prev)
	res2, err := f.v.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, b2.ValidityPIs, res2.PublicInputs)
	assert.Equal(t, prev.PisHash(), res2.PrevPisHash)

	// 缺少前驱时按创世链接，区块号不连续
	_, err = f.v.Validate(f.input(rollup.StageValidity, "testnet", b2.Witness))
	assert.Error(t, err)
	assert.True(t, proverr.IsClient(err))

	bad := b2.Witness
	bad.Block.PrevBlockHash = provertest.Hash(0x77)
	in = f.input(rollup.StageValidity, "testnet", bad)
	in.PrevProof = f.encode(prev)
	_, err = f.v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrCommitmentMismatch)
}

func TestFraudOnValidityProof(t *testing.T) {
	f := newFixture(t)
	challenger := "0x" + strings.Repeat("c3", 20)

	b1 := f.chain.PostBlock()
	validity := provertest.Prove(t, rollup.StageValidity, common.Hash{}, b1.ValidityPIs)
	w := rollup.FraudWitness{ValidityProof: f.encode(validity)}

	res, err := f.v.Validate(f.input(rollup.StageFraud, challenger, w))
	require.NoError(t, err)
	assert.Equal(t, b1.ValidityPIs.BlockHash.Hex(), res.RequestID)
	assert.Equal(t, validity.PisHash(), res.PrevPisHash)
	pis := res.PublicInputs.(rollup.FraudPublicInputs)
	assert.Equal(t, common.HexToAddress(challenger), pis.Challenger)
	assert.Equal(t, b1.ValidityPIs.BlockNumber, pis.BlockNumber)
	assert.Equal(t, b1.ValidityPIs.BlockTreeRoot, pis.BlockTreeRoot)

	// 主体必须是 20 字节地址
	_, err = f.v.Validate(f.input(rollup.StageFraud, provertest.Hash(1).Hex(), w))
	assert.ErrorIs(t, err, proverr.ErrInvalidSubject)

	// 只接受有效性证明
	deposit := provertest.Prove(t, rollup.StageDeposit, common.Hash{}, rollup.GenesisBalancePublicInputs(provertest.Hash(1)))
	_, err = f.v.Validate(f.input(rollup.StageFraud, challenger, rollup.FraudWitness{ValidityProof: f.encode(deposit)}))
	assert.ErrorIs(t, err, proverr.ErrInvalidPredecessorProof)

	genesis := provertest.Prove(t, rollup.StageValidity, common.Hash{}, rollup.GenesisValidityPublicInputs())
	_, err = f.v.Validate(f.input(rollup.StageFraud, challenger, rollup.FraudWitness{ValidityProof: f.encode(genesis)}))
	assert.ErrorIs(t, err, proverr.ErrBlockNumber)
}

func TestValidityRejectsTooManySenders(t *testing.T) {
	f := newFixture(t)
	b1 := f.chain.PostBlock()
	w := b1.Witness
	w.AccountUpdates = make([]rollup.AccountUpdate, rollup.NumSendersInBlock+1)
	_, err := f.v.Validate(f.input(rollup.StageValidity, "testnet", w))
	assert.ErrorIs(t, err, proverr.ErrFixedWidth)
}

func TestUpdateToNewBlock(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(4)
	blk := f.chain.PostBlock()
	validity := provertest.Prove(t, rollup.StageValidity, common.Hash{}, blk.ValidityPIs)

	w := rollup.UpdateWitness{
		ValidityProof:          f.encode(validity),
		AccountMembershipProof: f.chain.Membership(acct.Pubkey),
	}
	res, err := f.v.Validate(f.input(rollup.StageUpdate, acct.Pubkey.Hex(), w))
	require.NoError(t, err)
	pis := res.PublicInputs.(rollup.BalancePublicInputs)
	assert.Equal(t, blk.ValidityPIs.PublicState(), pis.PublicState)
	assert.Equal(t, rollup.GenesisPrivateState().Commitment(), pis.PrivateCommitment)
	assert.Equal(t, blk.ValidityPIs.BlockHash.Hex(), res.RequestID)

	// 非有效性证明
	w.ValidityProof = f.encode(provertest.Prove(t, rollup.StageDeposit, common.Hash{}, rollup.GenesisBalancePublicInputs(acct.Pubkey)))
	_, err = f.v.Validate(f.input(rollup.StageUpdate, acct.Pubkey.Hex(), w))
	assert.ErrorIs(t, err, proverr.ErrInvalidPredecessorProof)

	// 声称从未发送却携带区块号
	w.ValidityProof = f.encode(validity)
	w.PrevBlockNumber = 1
	_, err = f.v.Validate(f.input(rollup.StageUpdate, acct.Pubkey.Hex(), w))
	assert.ErrorIs(t, err, proverr.ErrBlockNumber)
}

// ============================================================================
// 转账接收 / 发送 / 提现
// ============================================================================

func TestTransferReceive(t *testing.T) {
	f := newFixture(t)
	tc := provertest.NewTransferCase(t, f.chain, f.codec, 30)

	in := f.input(rollup.StageTransfer, tc.Recipient.Pubkey.Hex(), tc.Witness)
	in.PrevProof = f.encode(tc.RecipientPrev)
	res, err := f.v.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, tc.Witness.TransferWitness.Transfer.Nullifier().Hex(), res.RequestID)
	assert.Equal(t, tc.Recipient.State.Commitment(), res.PublicInputs.(rollup.BalancePublicInputs).PrivateCommitment)
	assert.Equal(t, tc.RecipientPrev.PisHash(), res.PrevPisHash)
}

func TestTransferReceiveRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tc *provertest.TransferCase, w *rollup.ReceiveTransferWitness)
		want   error
	}{
		{
			name: "bad nullifier",
			mutate: func(_ *provertest.TransferCase, w *rollup.ReceiveTransferWitness) {
				w.PrivateWitness.Nullifier = provertest.Hash(0x42)
			},
			want: proverr.ErrNullifierMismatch,
		},
		{
			name: "wrong token",
			mutate: func(_ *provertest.TransferCase, w *rollup.ReceiveTransferWitness) {
				w.PrivateWitness.TokenIndex = 3
			},
			want: proverr.ErrTokenIndexMismatch,
		},
		{
			name: "transfer not in tx",
			mutate: func(_ *provertest.TransferCase, w *rollup.ReceiveTransferWitness) {
				w.TransferWitness.TransferIndex = 1
			},
			want: proverr.ErrInvalidInclusionProof,
		},
		{
			name: "short transfer path",
			mutate: func(_ *provertest.TransferCase, w *rollup.ReceiveTransferWitness) {
				w.TransferWitness.TransferMerkleProof.Siblings = append(w.TransferWitness.TransferMerkleProof.Siblings, common.Hash{})
			},
			want: proverr.ErrFixedWidth,
		},
		{
			name: "sender proof missing",
			mutate: func(_ *provertest.TransferCase, w *rollup.ReceiveTransferWitness) {
				w.SenderBalanceProof = ""
			},
			want: proverr.ErrInvalidPredecessorProof,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tc := provertest.NewTransferCase(t, f.chain, f.codec, 30)
			w := tc.Witness
			tt.mutate(tc, &w)

			in := f.input(rollup.StageTransfer, tc.Recipient.Pubkey.Hex(), w)
			in.PrevProof = f.encode(tc.RecipientPrev)
			_, err := f.v.Validate(in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// sendCase 发送方已收到存款，并在新区块中发出一笔转账与一笔提现
type sendCase struct {
	sender    *provertest.Account
	prev      *engine.Proof
	validity  *engine.Proof
	witness   rollup.SendWitness
	recipient common.Address
}

func newSendCase(t *testing.T, f *fixture) *sendCase {
	sender := provertest.NewAccount(5)
	dc := provertest.NewDepositCase(f.chain, sender, 0, 100)
	pis := rollup.BalancePublicInputs{
		Pubkey:            sender.Pubkey,
		PrivateCommitment: sender.State.Commitment(),
		PublicState:       dc.State,
	}
	prev := provertest.Prove(t, rollup.StageDeposit, common.Hash{}, pis)

	l1 := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	spent := sender.Spend(
		rollup.Transfer{Recipient: provertest.Hash(0x30), TokenIndex: 0, Amount: provertest.Amount(40)},
		rollup.Transfer{Recipient: common.BytesToHash(l1.Bytes()), IsWithdrawal: true, TokenIndex: 0, Amount: provertest.Amount(25)},
	)
	blk := f.chain.PostBlock(provertest.SenderTx{Pubkey: sender.Pubkey, Tx: spent.Tx})
	validity := provertest.Prove(t, rollup.StageValidity, common.Hash{}, blk.ValidityPIs)
	inc := blk.Inclusions[sender.Pubkey]

	return &sendCase{
		sender:   sender,
		prev:     prev,
		validity: validity,
		witness: rollup.SendWitness{
			Spent:         spent,
			ValidityProof: f.encode(validity),
			TxIndex:       inc.Index,
			TxMerkleProof: inc.Proof,
		},
		recipient: l1,
	}
}

func (sc *sendCase) input(f *fixture) *Input {
	in := f.input(rollup.StageSend, sc.sender.Pubkey.Hex(), sc.witness)
	in.PrevProof = f.encode(sc.prev)
	return in
}

func TestSendWithoutSpentProof(t *testing.T) {
	f := newFixture(t)
	sc := newSendCase(t, f)

	res, err := f.v.Validate(sc.input(f))
	require.NoError(t, err)
	pis := res.PublicInputs.(rollup.BalancePublicInputs)
	assert.Equal(t, sc.sender.State.Commitment(), pis.PrivateCommitment)
	assert.Equal(t, sc.witness.Spent.Tx.Hash(), pis.LastTxHash)
	assert.Equal(t, uint64(0), pis.LastTxInsufficientFlags)
	require.NotNil(t, res.Spent)
	assert.Nil(t, res.SpentProof)
	assert.Equal(t, pis.PrivateCommitment, res.Spent.NewPrivateCommitment)
}

func TestSendWithSpentProof(t *testing.T) {
	f := newFixture(t)
	sc := newSendCase(t, f)
	base, err := f.v.Validate(sc.input(f))
	require.NoError(t, err)

	spentProof := provertest.Prove(t, rollup.StageSpent, sc.prev.PisHash(), *base.Spent)
	in := sc.input(f)
	in.SpentProof = f.encode(spentProof)
	res, err := f.v.Validate(in)
	require.NoError(t, err)
	require.NotNil(t, res.SpentProof)
	assert.Equal(t, spentProof.PisHash(), res.SpentProof.PisHash())

	// 花费证明与见证不一致
	wrong := *base.Spent
	wrong.InsufficientFlags = 1
	in.SpentProof = f.encode(provertest.Prove(t, rollup.StageSpent, sc.prev.PisHash(), wrong))
	_, err = f.v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrCommitmentMismatch)

	// 花费证明挂在别的前驱上
	in.SpentProof = f.encode(provertest.Prove(t, rollup.StageSpent, provertest.Hash(0x01), *base.Spent))
	_, err = f.v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrInvalidPredecessorProof)
}

func TestSendRejectsTxOutsideBlock(t *testing.T) {
	f := newFixture(t)
	sc := newSendCase(t, f)
	sc.witness.TxIndex++
	_, err := f.v.Validate(sc.input(f))
	assert.ErrorIs(t, err, proverr.ErrInvalidInclusionProof)
}

func TestWithdrawalChain(t *testing.T) {
	f := newFixture(t)
	sc := newSendCase(t, f)
	send, err := f.v.Validate(sc.input(f))
	require.NoError(t, err)
	balance := provertest.Prove(t, rollup.StageSend, sc.prev.PisHash(), send.PublicInputs)

	w := rollup.WithdrawalWitness{
		TransferWitness: provertest.TransferWitness(sc.witness.Spent, 1),
		BalanceProof:    f.encode(balance),
	}
	res, err := f.v.Validate(f.input(rollup.StageWithdrawal, sc.sender.Pubkey.Hex(), w))
	require.NoError(t, err)

	require.NotNil(t, res.SingleWithdrawal)
	assert.Equal(t, sc.recipient, res.SingleWithdrawal.Recipient)
	assert.Equal(t, uint64(25), res.SingleWithdrawal.Amount.Uint64())
	agg := res.PublicInputs.(rollup.WithdrawalPublicInputs)
	assert.Equal(t, uint32(1), agg.Count)
	assert.Equal(t, rollup.ChainWithdrawal(rollup.WithdrawalPublicInputs{}, *res.SingleWithdrawal), agg)

	// 链上第二笔：引用第一笔作为前驱
	prev := provertest.Prove(t, rollup.StageWithdrawal, common.Hash{}, agg)
	w.PrevWithdrawalHash = agg.WithdrawalHash
	in := f.input(rollup.StageWithdrawal, sc.sender.Pubkey.Hex(), w)
	in.PrevProof = f.encode(prev)
	res2, err := f.v.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), res2.PublicInputs.(rollup.WithdrawalPublicInputs).Count)
	assert.Equal(t, prev.PisHash(), res2.PrevPisHash)

	// 前驱哈希不一致
	w.PrevWithdrawalHash = provertest.Hash(0x55)
	in = f.input(rollup.StageWithdrawal, sc.sender.Pubkey.Hex(), w)
	in.PrevProof = f.encode(prev)
	_, err = f.v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrCommitmentMismatch)

	// 非提现转账
	w = rollup.WithdrawalWitness{
		TransferWitness: provertest.TransferWitness(sc.witness.Spent, 0),
		BalanceProof:    f.encode(balance),
	}
	_, err = f.v.Validate(f.input(rollup.StageWithdrawal, sc.sender.Pubkey.Hex(), w))
	assert.ErrorIs(t, err, proverr.ErrRecipientMismatch)

	// 主体不是发送方
	w.TransferWitness = provertest.TransferWitness(sc.witness.Spent, 1)
	_, err = f.v.Validate(f.input(rollup.StageWithdrawal, provertest.Hash(0x66).Hex(), w))
	assert.ErrorIs(t, err, proverr.ErrSubjectMismatch)
}

func TestValidateNotReadyPassesThrough(t *testing.T) {
	f := newFixture(t)
	acct := provertest.NewAccount(1)
	prev := provertest.Prove(t, rollup.StageDeposit, common.Hash{}, rollup.GenesisBalancePublicInputs(acct.Pubkey))
	encoded := f.encode(prev)

	unready := provertest.UnreadyRegistry(t)
	v := New(codec.New(unready), unready)
	dc := provertest.NewDepositCase(f.chain, acct, 0, 1)
	in := f.input(rollup.StageDeposit, acct.Pubkey.Hex(), dc.Witness)
	in.PrevProof = encoded
	_, err := v.Validate(in)
	assert.ErrorIs(t, err, proverr.ErrNotReady)
	assert.False(t, proverr.IsClient(err))
}
