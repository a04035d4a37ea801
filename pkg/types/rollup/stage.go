package rollup

import (
	"fmt"
	"strings"
)

// Stage 证明阶段
type Stage string

const (
	// StageValidity 区块有效性证明（block-validity 链）
	StageValidity Stage = "validity"
	// StageDeposit 接收存款
	StageDeposit Stage = "deposit"
	// StageUpdate 将余额证明推进到新的公共状态
	StageUpdate Stage = "update"
	// StageTransfer 接收转账
	StageTransfer Stage = "transfer"
	// StageSpent 花费子证明（私有状态扣减）
	StageSpent Stage = "spent"
	// StageSend 发送交易
	StageSend Stage = "send"
	// StageSingleWithdrawal 单笔提现子证明，仅在作业内部生成
	StageSingleWithdrawal Stage = "single-withdrawal"
	// StageWithdrawal 提现聚合链
	StageWithdrawal Stage = "withdrawal"
	// StageFraud 挑战者针对某区块有效性证明的欺诈证明，按区块去重
	StageFraud Stage = "fraud"
)

// 键空间
const (
	DomainBalanceValidity = "balance-validity"
	DomainBlockValidity   = "block-validity"
	DomainWithdrawal      = "withdrawal"
	DomainFraud           = "fraud"
)

var allStages = []Stage{
	StageValidity,
	StageDeposit,
	StageUpdate,
	StageTransfer,
	StageSpent,
	StageSend,
	StageSingleWithdrawal,
	StageWithdrawal,
	StageFraud,
}

// AllStages 返回全部阶段（顺序固定，决定电路标签）
func AllStages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// BalanceStages 输出 BalancePublicInputs 的阶段，可作为余额链前驱
func BalanceStages() []Stage {
	return []Stage{StageDeposit, StageUpdate, StageTransfer, StageSend}
}

// ParseStage 解析路由中的阶段名，spend 为 send 的别名
func ParseStage(s string) (Stage, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "spend" {
		return StageSend, nil
	}
	for _, st := range allStages {
		if string(st) == name {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Tag 电路域分隔标签
func (s Stage) Tag() uint64 {
	for i, st := range allStages {
		if st == s {
			return uint64(i + 1)
		}
	}
	return 0
}

// Domain 键空间前缀
func (s Stage) Domain() string {
	switch s {
	case StageValidity:
		return DomainBlockValidity
	case StageWithdrawal, StageSingleWithdrawal:
		return DomainWithdrawal
	case StageFraud:
		return DomainFraud
	default:
		return DomainBalanceValidity
	}
}

// Submittable 是否允许客户端直接提交
func (s Stage) Submittable() bool {
	return s.Tag() != 0 && s != StageSingleWithdrawal
}

// IsBalance 是否属于余额链
func (s Stage) IsBalance() bool {
	for _, st := range BalanceStages() {
		if st == s {
			return true
		}
	}
	return false
}

func (s Stage) String() string {
	return string(s)
}
