package provertest

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// Encoder 证明编码器
type Encoder interface {
	Encode(p *engine.Proof) (string, error)
}

// Encode 编码证明，失败时终止测试
func Encode(t testing.TB, enc Encoder, p *engine.Proof) string {
	t.Helper()
	s, err := enc.Encode(p)
	require.NoError(t, err)
	return s
}

// ============================================================================
// 存款场景
// ============================================================================

// DepositCase 一笔已上链、可被接收的存款
type DepositCase struct {
	Account *Account
	Salt    common.Hash
	State   rollup.PublicState
	Witness rollup.ReceiveDepositWitness
}

// NewDepositCase 追加存款并出块，生成接收见证（推进账户本地状态）
func NewDepositCase(chain *Chain, acct *Account, token uint32, amount uint64) *DepositCase {
	salt := common.BytesToHash([]byte{0xde, byte(token), byte(amount)})
	dw := chain.AddDeposit(acct.Pubkey, salt, token, amount)
	chain.PostBlock()
	dw = chain.DepositProof(dw)
	pw := acct.Receive(token, dw.Deposit.Amount, dw.Deposit.Nullifier())
	return &DepositCase{
		Account: acct,
		Salt:    salt,
		State:   chain.State,
		Witness: rollup.ReceiveDepositWitness{
			DepositWitness: dw,
			DepositSalt:    salt,
			PrivateWitness: pw,
		},
	}
}

// ============================================================================
// 转账场景
// ============================================================================

// TransferCase 一笔已上链的转账，附带发送方余额证明与接收方前驱证明
type TransferCase struct {
	Sender    *Account
	Recipient *Account
	Spent     rollup.SpentWitness
	Block     BlockResult

	SenderProof   *engine.Proof
	RecipientPrev *engine.Proof
	Witness       rollup.ReceiveTransferWitness
}

// NewTransferCase 发送方向接收方转出 amount，并为接收方构造接收见证
//
// 发送方与接收方的前驱证明直接按目标公共输入生成。
func NewTransferCase(t testing.TB, chain *Chain, enc Encoder, amount uint64) *TransferCase {
	t.Helper()
	sender := NewAccount(0x01)
	recipient := NewAccount(0x02)
	sender.Receive(0, Amount(amount), Hash(0xd0))

	spent := sender.Spend(rollup.Transfer{
		Recipient:  recipient.Pubkey,
		TokenIndex: 0,
		Amount:     Amount(amount),
		Salt:       Hash(0x33),
	})
	block := chain.PostBlock(SenderTx{Pubkey: sender.Pubkey, Tx: spent.Tx})

	senderProof := Prove(t, rollup.StageSend, Hash(0x51), rollup.BalancePublicInputs{
		Pubkey:            sender.Pubkey,
		PrivateCommitment: sender.State.Commitment(),
		LastTxHash:        spent.Tx.Hash(),
		PublicState:       chain.State,
	})
	recipientPIs := rollup.GenesisBalancePublicInputs(recipient.Pubkey)
	recipientPIs.PublicState = chain.State
	recipientPrev := Prove(t, rollup.StageUpdate, common.Hash{}, recipientPIs)

	tw := TransferWitness(spent, 0)
	pw := recipient.Receive(0, tw.Transfer.Amount, tw.Transfer.Nullifier())
	return &TransferCase{
		Sender:        sender,
		Recipient:     recipient,
		Spent:         spent,
		Block:         block,
		SenderProof:   senderProof,
		RecipientPrev: recipientPrev,
		Witness: rollup.ReceiveTransferWitness{
			TransferWitness:    tw,
			SenderBalanceProof: Encode(t, enc, senderProof),
			BlockMerkleProof:   chain.BlockProof(block.Witness.Block.BlockNumber),
			PrivateWitness:     pw,
		},
	}
}
