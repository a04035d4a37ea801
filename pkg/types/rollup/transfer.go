package rollup

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// 哈希域分隔标签
const (
	tagDepositLeaf uint64 = 1
	tagTxLeaf      uint64 = 2
)

// Deposit 存款
type Deposit struct {
	PubkeySaltHash common.Hash  `json:"pubkeySaltHash"`
	TokenIndex     uint32       `json:"tokenIndex"`
	Amount         *uint256.Int `json:"amount"`
}

// LeafHash 存款树叶子
func (d Deposit) LeafHash() common.Hash {
	return MiMC(U64(tagDepositLeaf), d.PubkeySaltHash, U64(uint64(d.TokenIndex)), U256(d.Amount))
}

// Nullifier 存款 nullifier
func (d Deposit) Nullifier() common.Hash {
	return MiMC(d.PubkeySaltHash, U64(uint64(d.TokenIndex)), U256(d.Amount))
}

// Transfer 转账。IsWithdrawal 为 true 时 Recipient 低 20 字节为 L1 地址
type Transfer struct {
	Recipient    common.Hash  `json:"recipient"`
	IsWithdrawal bool         `json:"isWithdrawal"`
	TokenIndex   uint32       `json:"tokenIndex"`
	Amount       *uint256.Int `json:"amount"`
	Salt         common.Hash  `json:"salt"`
}

// Hash 转账哈希，即转账树叶子
func (t Transfer) Hash() common.Hash {
	return MiMC(t.Recipient, Bool(t.IsWithdrawal), U64(uint64(t.TokenIndex)), U256(t.Amount), t.Salt)
}

// Nullifier 接收方使用的 nullifier
func (t Transfer) Nullifier() common.Hash {
	return t.Hash()
}

// RecipientAddress 提现接收地址
func (t Transfer) RecipientAddress() common.Address {
	return common.BytesToAddress(t.Recipient[common.HashLength-common.AddressLength:])
}

// TransferTreeRoot 计算定宽转账列表的转账树根
func TransferTreeRoot(transfers []Transfer) common.Hash {
	tree := NewSparseMerkleTree(TransferTreeHeight)
	for i, t := range transfers {
		tree.Set(uint64(i), t.Hash())
	}
	return tree.Root()
}

// Tx 交易
type Tx struct {
	TransferTreeRoot common.Hash `json:"transferTreeRoot"`
	Nonce            uint32      `json:"nonce"`
}

// Hash 交易哈希
func (tx Tx) Hash() common.Hash {
	return MiMC(tx.TransferTreeRoot, U64(uint64(tx.Nonce)))
}

// TxLeaf 交易树叶子：发送方公钥与交易哈希
func TxLeaf(pubkey common.Hash, txHash common.Hash) common.Hash {
	return MiMC(U64(tagTxLeaf), pubkey, txHash)
}
