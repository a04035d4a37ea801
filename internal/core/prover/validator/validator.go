// Package validator 见证校验器
//
// 一个 Validator 通过按阶段注册的规则集校验全部见证，检查严格按以下顺序进行：
//  1. 验证所有附带的证明（前驱与依赖）
//  2. 定宽集合长度
//  3. 默克尔包含
//  4. nullifier / token index / amount 等一致性
//  5. 与前驱公共输入（或创世状态）的承诺链接
//
// 校验是纯函数：不访问存储，不生成证明；通过后返回作业需要的全部推导结果。
package validator

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// Decoder 证明解码
type Decoder interface {
	Decode(encoded string, allowed ...rollup.Stage) (*engine.Proof, error)
}

// Verifier 证明验证
type Verifier interface {
	Verify(p *engine.Proof) error
}

// Input 一次提交的原始输入
type Input struct {
	Stage       rollup.Stage
	Subject     string
	PrevProof   string
	PublicState *rollup.PublicState
	SpentProof  string
	Witness     json.RawMessage
}

// Result 校验通过后的推导结果
type Result struct {
	Stage     rollup.Stage
	Subject   string
	RequestID string

	// 前驱证明（创世时为 nil）及其公共输入摘要
	Prev        *engine.Proof
	PrevPisHash common.Hash

	// WitnessDigest 规范化见证的域内摘要
	WitnessDigest common.Hash

	// PublicInputs 本阶段输出的公共输入
	PublicInputs any

	// 发送阶段：客户端附带的花费证明，或需要在作业内先行生成的花费子证明
	SpentProof *engine.Proof
	Spent      *rollup.SpentPublicInputs

	// 提现阶段：作业内生成的单笔提现子证明
	SingleWithdrawal *rollup.SingleWithdrawalPublicInputs
}

// ruleSet 单个阶段的五步规则
type ruleSet interface {
	decode(c *checkContext) error
	verifyProofs(c *checkContext) error
	checkWidths(c *checkContext) error
	checkInclusion(c *checkContext) error
	checkConsistency(c *checkContext) error
	checkChaining(c *checkContext) error
	result(c *checkContext) (*Result, error)
}

// Validator 见证校验器
type Validator struct {
	decoder  Decoder
	verifier Verifier
	rules    map[rollup.Stage]func() ruleSet
}

// New 创建校验器
func New(decoder Decoder, verifier Verifier) *Validator {
	return &Validator{
		decoder:  decoder,
		verifier: verifier,
		// 规则集携带单次校验的状态，每次校验新建
		rules: map[rollup.Stage]func() ruleSet{
			rollup.StageValidity:   func() ruleSet { return &validityRules{} },
			rollup.StageDeposit:    func() ruleSet { return &depositRules{} },
			rollup.StageUpdate:     func() ruleSet { return &updateRules{} },
			rollup.StageTransfer:   func() ruleSet { return &transferRules{} },
			rollup.StageSpent:      func() ruleSet { return &spentRules{} },
			rollup.StageSend:       func() ruleSet { return &sendRules{} },
			rollup.StageWithdrawal: func() ruleSet { return &withdrawalRules{} },
			rollup.StageFraud:      func() ruleSet { return &fraudRules{} },
		},
	}
}

// Supports 阶段是否可提交
func (v *Validator) Supports(stage rollup.Stage) bool {
	_, ok := v.rules[stage]
	return ok
}

// Validate 按固定顺序执行阶段规则
func (v *Validator) Validate(in *Input) (*Result, error) {
	if in == nil {
		return nil, proverr.Wrap(proverr.ErrMalformedWitness, "empty input")
	}
	newRules, ok := v.rules[in.Stage]
	if !ok {
		return nil, proverr.Wrap(proverr.ErrUnsupportedStage, "stage=%s", in.Stage)
	}
	rules := newRules()

	c := &checkContext{v: v, in: in}
	if err := c.parseSubject(); err != nil {
		return nil, err
	}
	if len(in.Witness) == 0 || string(in.Witness) == "null" {
		return nil, proverr.Wrap(proverr.ErrMalformedWitness, "witness is required")
	}
	if err := rules.decode(c); err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedWitness, "%v", err)
	}

	steps := []func(*checkContext) error{
		rules.verifyProofs,
		rules.checkWidths,
		rules.checkInclusion,
		rules.checkConsistency,
		rules.checkChaining,
	}
	for _, step := range steps {
		if err := step(c); err != nil {
			return nil, err
		}
	}

	res, err := rules.result(c)
	if err != nil {
		return nil, err
	}
	res.Stage = in.Stage
	res.Subject = in.Subject
	res.Prev = c.prev
	if c.prev != nil {
		res.PrevPisHash = c.prev.PisHash()
	}
	digest, err := witnessDigest(c.witness)
	if err != nil {
		return nil, err
	}
	res.WitnessDigest = digest
	return res, nil
}

func witnessDigest(w any) (common.Hash, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode witness: %w", err)
	}
	return rollup.HashBytes(data), nil
}
