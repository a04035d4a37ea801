package validator

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 区块有效性：Validity(n-1) → Validity(n)
// ============================================================================

type validityRules struct {
	w        rollup.BlockValidityWitness
	prev     rollup.ValidityPublicInputs
	nextRoot common.Hash
}

func (r *validityRules) decode(c *checkContext) error {
	r.w = rollup.BlockValidityWitness{}
	return c.decodeWitness(&r.w)
}

func (r *validityRules) verifyProofs(c *checkContext) error {
	if c.in.PrevProof == "" {
		r.prev = rollup.GenesisValidityPublicInputs()
		return nil
	}
	p, err := c.decodeAndVerify("prevProof", c.in.PrevProof, rollup.StageValidity)
	if err != nil {
		return err
	}
	pis, err := validityPIs("prevProof", p)
	if err != nil {
		return err
	}
	c.prev = p
	r.prev = *pis
	return nil
}

func (r *validityRules) checkWidths(c *checkContext) error {
	if err := checkHeight("blockMerkleProof", r.w.BlockMerkleProof, rollup.BlockTreeHeight); err != nil {
		return err
	}
	if len(r.w.AccountUpdates) > rollup.NumSendersInBlock {
		return proverr.Wrap(proverr.ErrFixedWidth, "accountUpdates: at most %d, got %d", rollup.NumSendersInBlock, len(r.w.AccountUpdates))
	}
	for _, u := range r.w.AccountUpdates {
		if err := checkHeight("accountUpdates[].merkleProof", u.MerkleProof, rollup.AccountTreeHeight); err != nil {
			return err
		}
	}
	return nil
}

func (r *validityRules) checkInclusion(c *checkContext) error {
	b := r.w.Block
	// 新区块落在前一区块树的空槽
	if !r.w.BlockMerkleProof.Verify(common.Hash{}, uint64(b.BlockNumber), r.prev.BlockTreeRoot) {
		return proverr.WrapInclusionError("block", uint64(b.BlockNumber))
	}
	root, err := r.w.ApplyAccountUpdates(r.prev.AccountTreeRoot)
	if err != nil {
		var accErr *rollup.AccountProofError
		if errors.As(err, &accErr) {
			return proverr.WrapInclusionError("account", r.w.AccountUpdates[accErr.Index].AccountIndex)
		}
		return proverr.Wrap(proverr.ErrInvalidInclusionProof, "%v", err)
	}
	r.nextRoot = root
	return nil
}

func (r *validityRules) checkConsistency(c *checkContext) error {
	number := r.w.Block.BlockNumber
	seen := make(map[uint64]struct{}, len(r.w.AccountUpdates))
	for _, u := range r.w.AccountUpdates {
		if _, dup := seen[u.AccountIndex]; dup {
			return proverr.Wrap(proverr.ErrSubjectMismatch, "account %d updated twice", u.AccountIndex)
		}
		seen[u.AccountIndex] = struct{}{}
		if !u.PrevLeaf.IsEmpty() && u.PrevLeaf.Pubkey != u.Pubkey {
			return proverr.Wrap(proverr.ErrSubjectMismatch, "account %d holds %s, update for %s",
				u.AccountIndex, u.PrevLeaf.Pubkey.Hex(), u.Pubkey.Hex())
		}
		if u.PrevLeaf.LastBlockNumber >= number && !u.PrevLeaf.IsEmpty() {
			return proverr.Wrap(proverr.ErrBlockNumber, "account %d last block %d, new block %d",
				u.AccountIndex, u.PrevLeaf.LastBlockNumber, number)
		}
	}
	return nil
}

func (r *validityRules) checkChaining(c *checkContext) error {
	b := r.w.Block
	if b.PrevBlockHash != r.prev.BlockHash {
		return proverr.Wrap(proverr.ErrCommitmentMismatch, "prev block hash %s, predecessor %s",
			b.PrevBlockHash.Hex(), r.prev.BlockHash.Hex())
	}
	if b.BlockNumber != r.prev.BlockNumber+1 {
		return proverr.Wrap(proverr.ErrBlockNumber, "block %d does not follow %d", b.BlockNumber, r.prev.BlockNumber)
	}
	return nil
}

func (r *validityRules) result(c *checkContext) (*Result, error) {
	b := r.w.Block
	hash := b.Hash()
	blockRoot := r.w.BlockMerkleProof.ComputeRoot(hash, uint64(b.BlockNumber))
	return &Result{
		RequestID: hash.Hex(),
		PublicInputs: rollup.ValidityPublicInputs{
			PrevAccountTreeRoot: r.prev.AccountTreeRoot,
			PrevBlockTreeRoot:   r.prev.BlockTreeRoot,
			AccountTreeRoot:     r.nextRoot,
			BlockTreeRoot:       blockRoot,
			DepositTreeRoot:     b.DepositTreeRoot,
			TxTreeRoot:          b.TxTreeRoot,
			BlockHash:           hash,
			BlockNumber:         b.BlockNumber,
		},
	}, nil
}
