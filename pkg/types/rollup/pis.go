package rollup

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BalancePublicInputs 余额链证明的公共输入
type BalancePublicInputs struct {
	Pubkey                  common.Hash `json:"pubkey"`
	PrivateCommitment       common.Hash `json:"privateCommitment"`
	LastTxHash              common.Hash `json:"lastTxHash"`
	LastTxInsufficientFlags uint64      `json:"lastTxInsufficientFlags"`
	PublicState             PublicState `json:"publicState"`
}

// GenesisBalancePublicInputs 账户尚无余额证明时的起点
func GenesisBalancePublicInputs(pubkey common.Hash) BalancePublicInputs {
	return BalancePublicInputs{
		Pubkey:            pubkey,
		PrivateCommitment: GenesisPrivateState().Commitment(),
		PublicState:       GenesisPublicState(),
	}
}

// IsInsufficient 交易中第 i 笔转账是否因余额不足而作废
func IsInsufficient(flags uint64, i uint32) bool {
	return i < 64 && (flags>>i)&1 == 1
}

// ValidityPublicInputs 区块有效性证明的公共输入
type ValidityPublicInputs struct {
	PrevAccountTreeRoot common.Hash `json:"prevAccountTreeRoot"`
	PrevBlockTreeRoot   common.Hash `json:"prevBlockTreeRoot"`
	AccountTreeRoot     common.Hash `json:"accountTreeRoot"`
	BlockTreeRoot       common.Hash `json:"blockTreeRoot"`
	DepositTreeRoot     common.Hash `json:"depositTreeRoot"`
	TxTreeRoot          common.Hash `json:"txTreeRoot"`
	BlockHash           common.Hash `json:"blockHash"`
	BlockNumber         uint32      `json:"blockNumber"`
}

// PublicState 该区块之后的公共状态
func (p ValidityPublicInputs) PublicState() PublicState {
	return PublicState{
		BlockTreeRoot:   p.BlockTreeRoot,
		AccountTreeRoot: p.AccountTreeRoot,
		DepositTreeRoot: p.DepositTreeRoot,
		BlockHash:       p.BlockHash,
		BlockNumber:     p.BlockNumber,
	}
}

// GenesisValidityPublicInputs 创世区块对应的有效性公共输入
func GenesisValidityPublicInputs() ValidityPublicInputs {
	g := GenesisPublicState()
	b := GenesisBlock()
	return ValidityPublicInputs{
		PrevAccountTreeRoot: g.AccountTreeRoot,
		PrevBlockTreeRoot:   EmptyRoot(BlockTreeHeight),
		AccountTreeRoot:     g.AccountTreeRoot,
		BlockTreeRoot:       g.BlockTreeRoot,
		DepositTreeRoot:     g.DepositTreeRoot,
		TxTreeRoot:          b.TxTreeRoot,
		BlockHash:           g.BlockHash,
		BlockNumber:         0,
	}
}

// SpentPublicInputs 花费子证明公共输入
type SpentPublicInputs struct {
	PrevPrivateCommitment common.Hash `json:"prevPrivateCommitment"`
	NewPrivateCommitment  common.Hash `json:"newPrivateCommitment"`
	TxHash                common.Hash `json:"txHash"`
	InsufficientFlags     uint64      `json:"insufficientFlags"`
}

// SingleWithdrawalPublicInputs 单笔提现子证明公共输入
type SingleWithdrawalPublicInputs struct {
	Recipient   common.Address `json:"recipient"`
	TokenIndex  uint32         `json:"tokenIndex"`
	Amount      *uint256.Int   `json:"amount"`
	Nullifier   common.Hash    `json:"nullifier"`
	BlockHash   common.Hash    `json:"blockHash"`
	BlockNumber uint32         `json:"blockNumber"`
}

// Hash 提现哈希
func (w SingleWithdrawalPublicInputs) Hash() common.Hash {
	return MiMC(
		common.BytesToHash(w.Recipient.Bytes()),
		U64(uint64(w.TokenIndex)),
		U256(w.Amount),
		w.Nullifier,
		w.BlockHash,
		U64(uint64(w.BlockNumber)),
	)
}

// WithdrawalPublicInputs 提现聚合链公共输入
type WithdrawalPublicInputs struct {
	PrevWithdrawalHash common.Hash `json:"prevWithdrawalHash"`
	WithdrawalHash     common.Hash `json:"withdrawalHash"`
	LastBlockNumber    uint32      `json:"lastBlockNumber"`
	Count              uint32      `json:"count"`
}

// ChainWithdrawal 将单笔提现折叠进聚合链
func ChainWithdrawal(prev WithdrawalPublicInputs, single SingleWithdrawalPublicInputs) WithdrawalPublicInputs {
	return WithdrawalPublicInputs{
		PrevWithdrawalHash: prev.WithdrawalHash,
		WithdrawalHash:     MiMC(prev.WithdrawalHash, single.Hash()),
		LastBlockNumber:    single.BlockNumber,
		Count:              prev.Count + 1,
	}
}

// FraudPublicInputs 欺诈证明公共输入：挑战者与被挑战区块
type FraudPublicInputs struct {
	Challenger    common.Address `json:"challenger"`
	BlockHash     common.Hash    `json:"blockHash"`
	BlockNumber   uint32         `json:"blockNumber"`
	BlockTreeRoot common.Hash    `json:"blockTreeRoot"`
}
