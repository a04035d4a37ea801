package validator

import (
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 存款接收：Genesis/X → Deposited
// ============================================================================

type depositRules struct {
	w     rollup.ReceiveDepositWitness
	state rollup.PublicState
	next  rollup.PrivateState
}

func (r *depositRules) decode(c *checkContext) error {
	r.w = rollup.ReceiveDepositWitness{}
	return c.decodeWitness(&r.w)
}

func (r *depositRules) verifyProofs(c *checkContext) error {
	if err := c.loadBalancePredecessor(); err != nil {
		return err
	}
	// 声明的公共状态：有前驱时必须与前驱一致；否则取客户端声明或创世
	switch {
	case c.prev != nil:
		if c.in.PublicState != nil && *c.in.PublicState != c.prevBalance.PublicState {
			return proverr.Wrap(proverr.ErrPublicStateMismatch, "claimed block %d, predecessor block %d",
				c.in.PublicState.BlockNumber, c.prevBalance.PublicState.BlockNumber)
		}
		r.state = c.prevBalance.PublicState
	case c.in.PublicState != nil:
		r.state = *c.in.PublicState
	default:
		r.state = rollup.GenesisPublicState()
	}
	return nil
}

func (r *depositRules) checkWidths(c *checkContext) error {
	if err := checkHeight("depositMerkleProof", r.w.DepositWitness.DepositMerkleProof, rollup.DepositTreeHeight); err != nil {
		return err
	}
	if err := checkAmounts("deposit.amount", r.w.DepositWitness.Deposit.Amount); err != nil {
		return err
	}
	return checkTransitionWidths(&r.w.PrivateWitness)
}

func (r *depositRules) checkInclusion(c *checkContext) error {
	dw := r.w.DepositWitness
	if !dw.DepositMerkleProof.Verify(dw.Deposit.LeafHash(), uint64(dw.DepositIndex), r.state.DepositTreeRoot) {
		return proverr.WrapInclusionError("deposit", uint64(dw.DepositIndex))
	}
	return checkAssetInclusion(&r.w.PrivateWitness)
}

func (r *depositRules) checkConsistency(c *checkContext) error {
	d := r.w.DepositWitness.Deposit
	if rollup.PubkeySaltHash(c.pubkey, r.w.DepositSalt) != d.PubkeySaltHash {
		return proverr.Wrap(proverr.ErrRecipientMismatch, "deposit %d is not addressed to %s", r.w.DepositWitness.DepositIndex, c.in.Subject)
	}
	return checkIncoming(&r.w.PrivateWitness, d.Nullifier(), d.TokenIndex, d.Amount)
}

func (r *depositRules) checkChaining(c *checkContext) error {
	return c.checkBalanceChaining(r.w.PrivateWitness.PrevPrivateState)
}

func (r *depositRules) result(c *checkContext) (*Result, error) {
	next, err := r.w.PrivateWitness.NewPrivateState()
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedWitness, "%v", err)
	}
	return &Result{
		RequestID: r.w.DepositWitness.Deposit.LeafHash().Hex(),
		PublicInputs: rollup.BalancePublicInputs{
			Pubkey:                  c.pubkey,
			PrivateCommitment:       next.Commitment(),
			LastTxHash:              c.prevBalance.LastTxHash,
			LastTxInsufficientFlags: c.prevBalance.LastTxInsufficientFlags,
			PublicState:             r.state,
		},
	}, nil
}

// ============================================================================
// 转账接收：X → TransferredIn
// ============================================================================

type transferRules struct {
	w      rollup.ReceiveTransferWitness
	sender *rollup.BalancePublicInputs
}

func (r *transferRules) decode(c *checkContext) error {
	r.w = rollup.ReceiveTransferWitness{}
	return c.decodeWitness(&r.w)
}

func (r *transferRules) verifyProofs(c *checkContext) error {
	if err := c.loadBalancePredecessor(); err != nil {
		return err
	}
	p, err := c.decodeAndVerify("senderBalanceProof", r.w.SenderBalanceProof, rollup.StageSend)
	if err != nil {
		return err
	}
	r.sender, err = balancePIs("senderBalanceProof", p)
	return err
}

func (r *transferRules) checkWidths(c *checkContext) error {
	if err := checkHeight("transferMerkleProof", r.w.TransferWitness.TransferMerkleProof, rollup.TransferTreeHeight); err != nil {
		return err
	}
	if err := checkHeight("blockMerkleProof", r.w.BlockMerkleProof, rollup.BlockTreeHeight); err != nil {
		return err
	}
	if err := checkAmounts("transfer.amount", r.w.TransferWitness.Transfer.Amount); err != nil {
		return err
	}
	return checkTransitionWidths(&r.w.PrivateWitness)
}

func (r *transferRules) checkInclusion(c *checkContext) error {
	tw := r.w.TransferWitness
	if !tw.InclusionValid() {
		return proverr.WrapInclusionError("transfer", uint64(tw.TransferIndex))
	}
	// 发送方区块必须已在接收方当前区块树内
	senderState := r.sender.PublicState
	if !r.w.BlockMerkleProof.Verify(senderState.BlockHash, uint64(senderState.BlockNumber), c.prevBalance.PublicState.BlockTreeRoot) {
		return proverr.WrapInclusionError("block", uint64(senderState.BlockNumber))
	}
	return checkAssetInclusion(&r.w.PrivateWitness)
}

func (r *transferRules) checkConsistency(c *checkContext) error {
	tw := r.w.TransferWitness
	if tw.Tx.Hash() != r.sender.LastTxHash {
		return proverr.Wrap(proverr.ErrTxHashMismatch, "tx %s, sender last tx %s", tw.Tx.Hash().Hex(), r.sender.LastTxHash.Hex())
	}
	if rollup.IsInsufficient(r.sender.LastTxInsufficientFlags, tw.TransferIndex) {
		return proverr.Wrap(proverr.ErrInsufficientTransfer, "transfer %d", tw.TransferIndex)
	}
	if tw.Transfer.IsWithdrawal || tw.Transfer.Recipient != c.pubkey {
		return proverr.Wrap(proverr.ErrRecipientMismatch, "transfer %d is not addressed to %s", tw.TransferIndex, c.in.Subject)
	}
	return checkIncoming(&r.w.PrivateWitness, tw.Transfer.Nullifier(), tw.Transfer.TokenIndex, tw.Transfer.Amount)
}

func (r *transferRules) checkChaining(c *checkContext) error {
	return c.checkBalanceChaining(r.w.PrivateWitness.PrevPrivateState)
}

func (r *transferRules) result(c *checkContext) (*Result, error) {
	next, err := r.w.PrivateWitness.NewPrivateState()
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedWitness, "%v", err)
	}
	return &Result{
		RequestID: r.w.TransferWitness.Transfer.Nullifier().Hex(),
		PublicInputs: rollup.BalancePublicInputs{
			Pubkey:                  c.pubkey,
			PrivateCommitment:       next.Commitment(),
			LastTxHash:              c.prevBalance.LastTxHash,
			LastTxInsufficientFlags: c.prevBalance.LastTxInsufficientFlags,
			PublicState:             c.prevBalance.PublicState,
		},
	}, nil
}

// ============================================================================
// 更新：X → Updated
// ============================================================================

type updateRules struct {
	w        rollup.UpdateWitness
	validity *rollup.ValidityPublicInputs
}

func (r *updateRules) decode(c *checkContext) error {
	r.w = rollup.UpdateWitness{}
	return c.decodeWitness(&r.w)
}

func (r *updateRules) verifyProofs(c *checkContext) error {
	if err := c.loadBalancePredecessor(); err != nil {
		return err
	}
	p, err := c.decodeAndVerify("validityProof", r.w.ValidityProof, rollup.StageValidity)
	if err != nil {
		return err
	}
	r.validity, err = validityPIs("validityProof", p)
	return err
}

func (r *updateRules) checkWidths(c *checkContext) error {
	return checkHeight("accountMembershipProof", r.w.AccountMembershipProof.MerkleProof, rollup.AccountTreeHeight)
}

func (r *updateRules) checkInclusion(c *checkContext) error {
	m := r.w.AccountMembershipProof
	if !m.Verify(r.validity.AccountTreeRoot) {
		return proverr.WrapInclusionError("account", m.LeafIndex)
	}
	return nil
}

func (r *updateRules) checkConsistency(c *checkContext) error {
	prevNumber := c.prevBalance.PublicState.BlockNumber
	if r.w.PrevBlockNumber > prevNumber {
		return proverr.Wrap(proverr.ErrBlockNumber, "prior block %d is ahead of predecessor block %d", r.w.PrevBlockNumber, prevNumber)
	}
	if r.validity.BlockNumber < prevNumber {
		return proverr.Wrap(proverr.ErrBlockNumber, "block %d is behind predecessor block %d", r.validity.BlockNumber, prevNumber)
	}
	m := r.w.AccountMembershipProof
	if m.IsIncluded {
		if m.Leaf.Pubkey != c.pubkey {
			return proverr.Wrap(proverr.ErrSubjectMismatch, "account leaf pubkey %s", m.Leaf.Pubkey.Hex())
		}
		if m.Leaf.LastBlockNumber != r.w.PrevBlockNumber {
			return proverr.Wrap(proverr.ErrBlockNumber, "account last block %d, witness prior block %d", m.Leaf.LastBlockNumber, r.w.PrevBlockNumber)
		}
	} else if r.w.PrevBlockNumber != 0 {
		return proverr.Wrap(proverr.ErrBlockNumber, "account never sent but prior block is %d", r.w.PrevBlockNumber)
	}
	return nil
}

func (r *updateRules) checkChaining(c *checkContext) error {
	if c.prevBalance.Pubkey != c.pubkey {
		return proverr.Wrap(proverr.ErrSubjectMismatch, "predecessor pubkey %s", c.prevBalance.Pubkey.Hex())
	}
	return nil
}

func (r *updateRules) result(c *checkContext) (*Result, error) {
	return &Result{
		RequestID: r.validity.BlockHash.Hex(),
		PublicInputs: rollup.BalancePublicInputs{
			Pubkey:                  c.pubkey,
			PrivateCommitment:       c.prevBalance.PrivateCommitment,
			LastTxHash:              c.prevBalance.LastTxHash,
			LastTxInsufficientFlags: c.prevBalance.LastTxInsufficientFlags,
			PublicState:             r.validity.PublicState(),
		},
	}, nil
}
