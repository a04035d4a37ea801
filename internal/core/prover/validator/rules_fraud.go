package validator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 欺诈证明：Validity(n) → Fraud(n)，主体为挑战者地址
// ============================================================================

type fraudRules struct {
	w        rollup.FraudWitness
	validity rollup.ValidityPublicInputs
}

func (r *fraudRules) decode(c *checkContext) error {
	r.w = rollup.FraudWitness{}
	return c.decodeWitness(&r.w)
}

func (r *fraudRules) verifyProofs(c *checkContext) error {
	p, err := c.decodeAndVerify("validityProof", r.w.ValidityProof, rollup.StageValidity)
	if err != nil {
		return err
	}
	pis, err := validityPIs("validityProof", p)
	if err != nil {
		return err
	}
	// 有效性证明即本证明的前驱，作业以其公共输入摘要链接
	c.prev = p
	r.validity = *pis
	return nil
}

func (r *fraudRules) checkWidths(c *checkContext) error {
	return nil
}

func (r *fraudRules) checkInclusion(c *checkContext) error {
	return nil
}

func (r *fraudRules) checkConsistency(c *checkContext) error {
	if r.validity.BlockNumber == 0 {
		return proverr.Wrap(proverr.ErrBlockNumber, "genesis block cannot be challenged")
	}
	return nil
}

func (r *fraudRules) checkChaining(c *checkContext) error {
	return nil
}

func (r *fraudRules) result(c *checkContext) (*Result, error) {
	return &Result{
		RequestID: r.validity.BlockHash.Hex(),
		PublicInputs: rollup.FraudPublicInputs{
			Challenger:    common.BytesToAddress(c.pubkey.Bytes()),
			BlockHash:     r.validity.BlockHash,
			BlockNumber:   r.validity.BlockNumber,
			BlockTreeRoot: r.validity.BlockTreeRoot,
		},
	}, nil
}
