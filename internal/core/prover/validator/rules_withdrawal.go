package validator

import (
	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 提现聚合：Withdrawal(k) → Withdrawal(k+1)
// ============================================================================

type withdrawalRules struct {
	w       rollup.WithdrawalWitness
	prev    rollup.WithdrawalPublicInputs
	balance *rollup.BalancePublicInputs
}

func (r *withdrawalRules) decode(c *checkContext) error {
	r.w = rollup.WithdrawalWitness{}
	return c.decodeWitness(&r.w)
}

func (r *withdrawalRules) verifyProofs(c *checkContext) error {
	if c.in.PrevProof != "" {
		p, err := c.decodeAndVerify("prevProof", c.in.PrevProof, rollup.StageWithdrawal)
		if err != nil {
			return err
		}
		pis, err := engine.DecodePublicInputs[rollup.WithdrawalPublicInputs](p)
		if err != nil {
			return proverr.WrapPredecessorError("prevProof", err)
		}
		c.prev = p
		r.prev = *pis
	}
	p, err := c.decodeAndVerify("balanceProof", r.w.BalanceProof, rollup.StageSend)
	if err != nil {
		return err
	}
	r.balance, err = balancePIs("balanceProof", p)
	return err
}

func (r *withdrawalRules) checkWidths(c *checkContext) error {
	if err := checkHeight("transferMerkleProof", r.w.TransferWitness.TransferMerkleProof, rollup.TransferTreeHeight); err != nil {
		return err
	}
	return checkAmounts("transfer.amount", r.w.TransferWitness.Transfer.Amount)
}

func (r *withdrawalRules) checkInclusion(c *checkContext) error {
	tw := r.w.TransferWitness
	if !tw.InclusionValid() {
		return proverr.WrapInclusionError("transfer", uint64(tw.TransferIndex))
	}
	return nil
}

func (r *withdrawalRules) checkConsistency(c *checkContext) error {
	tw := r.w.TransferWitness
	if !tw.Transfer.IsWithdrawal {
		return proverr.Wrap(proverr.ErrRecipientMismatch, "transfer %d is not a withdrawal", tw.TransferIndex)
	}
	if r.balance.Pubkey != c.pubkey {
		return proverr.Wrap(proverr.ErrSubjectMismatch, "balance proof pubkey %s", r.balance.Pubkey.Hex())
	}
	if tw.Tx.Hash() != r.balance.LastTxHash {
		return proverr.Wrap(proverr.ErrTxHashMismatch, "tx %s, sender last tx %s", tw.Tx.Hash().Hex(), r.balance.LastTxHash.Hex())
	}
	if rollup.IsInsufficient(r.balance.LastTxInsufficientFlags, tw.TransferIndex) {
		return proverr.Wrap(proverr.ErrInsufficientTransfer, "transfer %d", tw.TransferIndex)
	}
	// 聚合链按区块号单调
	if r.prev.Count > 0 && r.balance.PublicState.BlockNumber < r.prev.LastBlockNumber {
		return proverr.Wrap(proverr.ErrBlockNumber, "withdrawal block %d is behind chain block %d",
			r.balance.PublicState.BlockNumber, r.prev.LastBlockNumber)
	}
	return nil
}

func (r *withdrawalRules) checkChaining(c *checkContext) error {
	if r.w.PrevWithdrawalHash != r.prev.WithdrawalHash {
		return proverr.Wrap(proverr.ErrCommitmentMismatch, "prev withdrawal hash %s, predecessor %s",
			r.w.PrevWithdrawalHash.Hex(), r.prev.WithdrawalHash.Hex())
	}
	return nil
}

func (r *withdrawalRules) result(c *checkContext) (*Result, error) {
	t := r.w.TransferWitness.Transfer
	single := rollup.SingleWithdrawalPublicInputs{
		Recipient:   t.RecipientAddress(),
		TokenIndex:  t.TokenIndex,
		Amount:      t.Amount,
		Nullifier:   t.Nullifier(),
		BlockHash:   r.balance.PublicState.BlockHash,
		BlockNumber: r.balance.PublicState.BlockNumber,
	}
	return &Result{
		RequestID:        t.Nullifier().Hex(),
		PublicInputs:     rollup.ChainWithdrawal(r.prev, single),
		SingleWithdrawal: &single,
	}, nil
}
