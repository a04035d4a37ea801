package validator

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 花费见证公共检查
// ============================================================================

func checkSpentWidths(w *rollup.SpentWitness) error {
	if err := checkLen("transfers", len(w.Transfers), rollup.NumTransfersInTx); err != nil {
		return err
	}
	if err := checkLen("prevBalances", len(w.PrevBalances), rollup.NumTransfersInTx); err != nil {
		return err
	}
	if err := checkLen("assetMerkleProofs", len(w.AssetMerkleProofs), rollup.NumTransfersInTx); err != nil {
		return err
	}
	for _, p := range w.AssetMerkleProofs {
		if err := checkHeight("assetMerkleProofs[]", p, rollup.AssetTreeHeight); err != nil {
			return err
		}
	}
	for i := range w.Transfers {
		if err := checkAmounts("transfers", w.Transfers[i].Amount); err != nil {
			return err
		}
		if err := checkAmounts("prevBalances", w.PrevBalances[i].Amount); err != nil {
			return err
		}
	}
	return nil
}

// applySpent 顺序应用扣减并检查转账树根
func applySpent(w *rollup.SpentWitness) (rollup.PrivateState, uint64, error) {
	next, flags, err := w.Apply()
	if err != nil {
		var proofErr *rollup.AssetProofError
		if errors.As(err, &proofErr) {
			return rollup.PrivateState{}, 0, proverr.WrapInclusionError("asset", uint64(w.Transfers[proofErr.Index].TokenIndex))
		}
		return rollup.PrivateState{}, 0, proverr.Wrap(proverr.ErrInvalidInclusionProof, "%v", err)
	}
	if root := rollup.TransferTreeRoot(w.Transfers); root != w.Tx.TransferTreeRoot {
		return rollup.PrivateState{}, 0, proverr.Wrap(proverr.ErrInvalidInclusionProof, "transfer tree root %s, tx declares %s",
			root.Hex(), w.Tx.TransferTreeRoot.Hex())
	}
	return next, flags, nil
}

func checkSpentNonce(w *rollup.SpentWitness) error {
	if w.Tx.Nonce != w.PrevPrivateState.Nonce {
		return proverr.Wrap(proverr.ErrNonceMismatch, "tx nonce %d, private nonce %d", w.Tx.Nonce, w.PrevPrivateState.Nonce)
	}
	return nil
}

func spentPublicInputs(w *rollup.SpentWitness, next rollup.PrivateState, flags uint64) rollup.SpentPublicInputs {
	return rollup.SpentPublicInputs{
		PrevPrivateCommitment: w.PrevPrivateState.Commitment(),
		NewPrivateCommitment:  next.Commitment(),
		TxHash:                w.Tx.Hash(),
		InsufficientFlags:     flags,
	}
}

// ============================================================================
// 花费子证明
// ============================================================================

type spentRules struct {
	w     rollup.SpentWitness
	next  rollup.PrivateState
	flags uint64
}

func (r *spentRules) decode(c *checkContext) error {
	r.w = rollup.SpentWitness{}
	return c.decodeWitness(&r.w)
}

func (r *spentRules) verifyProofs(c *checkContext) error {
	return c.loadBalancePredecessor()
}

func (r *spentRules) checkWidths(c *checkContext) error {
	return checkSpentWidths(&r.w)
}

func (r *spentRules) checkInclusion(c *checkContext) error {
	var err error
	r.next, r.flags, err = applySpent(&r.w)
	return err
}

func (r *spentRules) checkConsistency(c *checkContext) error {
	return checkSpentNonce(&r.w)
}

func (r *spentRules) checkChaining(c *checkContext) error {
	return c.checkBalanceChaining(r.w.PrevPrivateState)
}

func (r *spentRules) result(c *checkContext) (*Result, error) {
	return &Result{
		RequestID:    r.w.Tx.Hash().Hex(),
		PublicInputs: spentPublicInputs(&r.w, r.next, r.flags),
	}, nil
}

// ============================================================================
// 发送：X → Sent
// ============================================================================

type sendRules struct {
	w          rollup.SendWitness
	validity   *rollup.ValidityPublicInputs
	spentProof *rollup.SpentPublicInputs
	spentRaw   *engine.Proof
	next       rollup.PrivateState
	flags      uint64
}

func (r *sendRules) decode(c *checkContext) error {
	r.w = rollup.SendWitness{}
	return c.decodeWitness(&r.w)
}

func (r *sendRules) verifyProofs(c *checkContext) error {
	if err := c.loadBalancePredecessor(); err != nil {
		return err
	}
	p, err := c.decodeAndVerify("validityProof", r.w.ValidityProof, rollup.StageValidity)
	if err != nil {
		return err
	}
	if r.validity, err = validityPIs("validityProof", p); err != nil {
		return err
	}
	if c.in.SpentProof == "" {
		return nil
	}
	sp, err := c.decodeAndVerify("spentProof", c.in.SpentProof, rollup.StageSpent)
	if err != nil {
		return err
	}
	// 花费证明与发送证明挂在同一前驱上
	var want common.Hash
	if c.prev != nil {
		want = c.prev.PisHash()
	}
	if sp.PrevPisHash != want {
		return proverr.WrapPredecessorError("spentProof", proverr.Wrap(proverr.ErrCommitmentMismatch, "spent proof predecessor %s", sp.PrevPisHash.Hex()))
	}
	if r.spentProof, err = engine.DecodePublicInputs[rollup.SpentPublicInputs](sp); err != nil {
		return proverr.WrapPredecessorError("spentProof", err)
	}
	r.spentRaw = sp
	return nil
}

func (r *sendRules) checkWidths(c *checkContext) error {
	if err := checkSpentWidths(&r.w.Spent); err != nil {
		return err
	}
	return checkHeight("txMerkleProof", r.w.TxMerkleProof, rollup.TxTreeHeight)
}

func (r *sendRules) checkInclusion(c *checkContext) error {
	var err error
	if r.next, r.flags, err = applySpent(&r.w.Spent); err != nil {
		return err
	}
	leaf := rollup.TxLeaf(c.pubkey, r.w.Spent.Tx.Hash())
	if !r.w.TxMerkleProof.Verify(leaf, uint64(r.w.TxIndex), r.validity.TxTreeRoot) {
		return proverr.WrapInclusionError("tx", uint64(r.w.TxIndex))
	}
	return nil
}

func (r *sendRules) checkConsistency(c *checkContext) error {
	if err := checkSpentNonce(&r.w.Spent); err != nil {
		return err
	}
	if r.validity.BlockNumber <= c.prevBalance.PublicState.BlockNumber {
		return proverr.Wrap(proverr.ErrBlockNumber, "tx block %d is not after predecessor block %d",
			r.validity.BlockNumber, c.prevBalance.PublicState.BlockNumber)
	}
	if r.spentProof != nil && *r.spentProof != spentPublicInputs(&r.w.Spent, r.next, r.flags) {
		return proverr.Wrap(proverr.ErrCommitmentMismatch, "spent proof does not match spent witness")
	}
	return nil
}

func (r *sendRules) checkChaining(c *checkContext) error {
	return c.checkBalanceChaining(r.w.Spent.PrevPrivateState)
}

func (r *sendRules) result(c *checkContext) (*Result, error) {
	spent := spentPublicInputs(&r.w.Spent, r.next, r.flags)
	res := &Result{
		RequestID: r.w.Spent.Tx.Hash().Hex(),
		PublicInputs: rollup.BalancePublicInputs{
			Pubkey:                  c.pubkey,
			PrivateCommitment:       r.next.Commitment(),
			LastTxHash:              r.w.Spent.Tx.Hash(),
			LastTxInsufficientFlags: r.flags,
			PublicState:             r.validity.PublicState(),
		},
		Spent:      &spent,
		SpentProof: r.spentRaw,
	}
	return res, nil
}
