package validator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

var chainIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ParseSubject 校验主体标识；余额与提现阶段要求 0x 前缀的 32 字节公钥
//
// 欺诈阶段的主体是挑战者的 20 字节地址，返回值左补零。
func ParseSubject(stage rollup.Stage, subject string) (common.Hash, error) {
	switch stage {
	case rollup.StageValidity:
		if !chainIDPattern.MatchString(subject) {
			return common.Hash{}, proverr.Wrap(proverr.ErrInvalidSubject, "chain id %q", subject)
		}
		return common.Hash{}, nil
	case rollup.StageFraud:
		if !strings.HasPrefix(subject, "0x") || !common.IsHexAddress(subject) {
			return common.Hash{}, proverr.Wrap(proverr.ErrInvalidSubject, "challenger %q must be 0x-prefixed 20 bytes hex", subject)
		}
		return common.BytesToHash(common.HexToAddress(subject).Bytes()), nil
	}
	if !strings.HasPrefix(subject, "0x") {
		return common.Hash{}, proverr.Wrap(proverr.ErrInvalidSubject, "pubkey %q must be 0x-prefixed", subject)
	}
	b, err := hexutil.Decode(subject)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, proverr.Wrap(proverr.ErrInvalidSubject, "pubkey %q must be 32 bytes hex", subject)
	}
	return common.BytesToHash(b), nil
}

// checkContext 单次校验过程中的共享状态
type checkContext struct {
	v  *Validator
	in *Input

	pubkey  common.Hash
	witness any

	// 前驱证明；余额链创世时 prevBalance 为创世公共输入
	prev        *engine.Proof
	prevBalance *rollup.BalancePublicInputs
}

func (c *checkContext) parseSubject() error {
	pk, err := ParseSubject(c.in.Stage, c.in.Subject)
	if err != nil {
		return err
	}
	c.pubkey = pk
	return nil
}

// decodeWitness 严格解码见证 JSON
func (c *checkContext) decodeWitness(dst any) error {
	if err := json.Unmarshal(c.in.Witness, dst); err != nil {
		return err
	}
	c.witness = dst
	return nil
}

// decodeAndVerify 解码并验证一个附带证明；未就绪错误原样返回
func (c *checkContext) decodeAndVerify(slot, encoded string, allowed ...rollup.Stage) (*engine.Proof, error) {
	p, err := c.v.decoder.Decode(encoded, allowed...)
	if err != nil {
		if proverr.IsNotReady(err) {
			return nil, err
		}
		return nil, proverr.WrapPredecessorError(slot, err)
	}
	if err := c.v.verifier.Verify(p); err != nil {
		if proverr.IsNotReady(err) {
			return nil, err
		}
		return nil, proverr.WrapPredecessorError(slot, err)
	}
	return p, nil
}

// loadBalancePredecessor 加载余额链前驱，缺省为创世
func (c *checkContext) loadBalancePredecessor() error {
	if c.in.PrevProof == "" {
		g := rollup.GenesisBalancePublicInputs(c.pubkey)
		c.prevBalance = &g
		return nil
	}
	p, err := c.decodeAndVerify("prevProof", c.in.PrevProof, rollup.BalanceStages()...)
	if err != nil {
		return err
	}
	pis, err := engine.DecodePublicInputs[rollup.BalancePublicInputs](p)
	if err != nil {
		return proverr.WrapPredecessorError("prevProof", err)
	}
	c.prev = p
	c.prevBalance = pis
	return nil
}

// balancePIs 解码依赖的余额证明公共输入
func balancePIs(slot string, p *engine.Proof) (*rollup.BalancePublicInputs, error) {
	pis, err := engine.DecodePublicInputs[rollup.BalancePublicInputs](p)
	if err != nil {
		return nil, proverr.WrapPredecessorError(slot, err)
	}
	return pis, nil
}

// validityPIs 解码依赖的有效性证明公共输入
func validityPIs(slot string, p *engine.Proof) (*rollup.ValidityPublicInputs, error) {
	pis, err := engine.DecodePublicInputs[rollup.ValidityPublicInputs](p)
	if err != nil {
		return nil, proverr.WrapPredecessorError(slot, err)
	}
	return pis, nil
}

// checkBalanceChaining 前驱属于同一主体，且私有状态承诺一致
func (c *checkContext) checkBalanceChaining(prevPrivate rollup.PrivateState) error {
	if c.prevBalance.Pubkey != c.pubkey {
		return proverr.Wrap(proverr.ErrSubjectMismatch, "predecessor pubkey %s", c.prevBalance.Pubkey.Hex())
	}
	if got := prevPrivate.Commitment(); got != c.prevBalance.PrivateCommitment {
		return proverr.Wrap(proverr.ErrCommitmentMismatch, "private commitment %s, predecessor %s",
			got.Hex(), c.prevBalance.PrivateCommitment.Hex())
	}
	return nil
}

func checkHeight(field string, p rollup.MerkleProof, height int) error {
	if p.Height() != height {
		return proverr.WrapFixedWidthError(field, height, p.Height())
	}
	return nil
}

func checkLen(field string, got, want int) error {
	if got != want {
		return proverr.WrapFixedWidthError(field, want, got)
	}
	return nil
}

// checkAmounts 金额必须小于标量域模数
func checkAmounts(field string, amounts ...*uint256.Int) error {
	for i, a := range amounts {
		if !rollup.AmountInField(a) {
			return proverr.Wrap(proverr.ErrAmountOutOfField, "%s[%d]=%s", field, i, a.Dec())
		}
	}
	return nil
}

// checkTransitionWidths 入账见证的路径高度与金额范围
func checkTransitionWidths(w *rollup.PrivateTransitionWitness) error {
	if err := checkHeight("assetMerkleProof", w.AssetMerkleProof, rollup.AssetTreeHeight); err != nil {
		return err
	}
	if err := checkHeight("nullifierProof", w.NullifierProof, rollup.NullifierTreeHeight); err != nil {
		return err
	}
	return checkAmounts("privateWitness", w.Amount, w.PrevAssetLeaf.Amount)
}

// checkAssetInclusion 入账见证的资产路径属于前一私有状态，且 nullifier 尚未使用
func checkAssetInclusion(w *rollup.PrivateTransitionWitness) error {
	if !w.AssetProofValid() {
		return proverr.WrapInclusionError("asset", uint64(w.TokenIndex))
	}
	if !w.NullifierUnused() {
		return proverr.Wrap(proverr.ErrNullifierUsed, "nullifier %s", w.Nullifier.Hex())
	}
	return nil
}

// checkIncoming 入账见证与来源（存款或转账）一致
func checkIncoming(w *rollup.PrivateTransitionWitness, nullifier common.Hash, token uint32, amount *uint256.Int) error {
	if w.Nullifier != nullifier {
		return proverr.Wrap(proverr.ErrNullifierMismatch, "witness %s, expected %s", w.Nullifier.Hex(), nullifier.Hex())
	}
	if w.TokenIndex != token {
		return proverr.Wrap(proverr.ErrTokenIndexMismatch, "witness %d, expected %d", w.TokenIndex, token)
	}
	if !rollup.AmountEqual(w.Amount, amount) {
		return proverr.Wrap(proverr.ErrAmountMismatch, "witness %s, expected %s", amountString(w.Amount), amountString(amount))
	}
	if _, err := w.PrevAssetLeaf.Add(w.Amount); err != nil {
		return proverr.Wrap(proverr.ErrAmountOverflow, "token %d", w.TokenIndex)
	}
	return nil
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
