package rollup

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrAmountOverflow 资产余额溢出
var ErrAmountOverflow = errors.New("asset amount overflow")

// PublicState 链上公共状态快照
type PublicState struct {
	BlockTreeRoot   common.Hash `json:"blockTreeRoot"`
	AccountTreeRoot common.Hash `json:"accountTreeRoot"`
	DepositTreeRoot common.Hash `json:"depositTreeRoot"`
	BlockHash       common.Hash `json:"blockHash"`
	BlockNumber     uint32      `json:"blockNumber"`
}

var (
	genesisOnce  sync.Once
	genesisState PublicState
	genesisBlock Block
)

func initGenesis() {
	genesisBlock = Block{
		DepositTreeRoot: EmptyRoot(DepositTreeHeight),
		TxTreeRoot:      EmptyRoot(TxTreeHeight),
	}
	blockTree := NewSparseMerkleTree(BlockTreeHeight)
	blockTree.Set(0, genesisBlock.Hash())
	genesisState = PublicState{
		BlockTreeRoot:   blockTree.Root(),
		AccountTreeRoot: EmptyRoot(AccountTreeHeight),
		DepositTreeRoot: EmptyRoot(DepositTreeHeight),
		BlockHash:       genesisBlock.Hash(),
		BlockNumber:     0,
	}
}

// GenesisBlock 创世区块
func GenesisBlock() Block {
	genesisOnce.Do(initGenesis)
	return genesisBlock
}

// GenesisPublicState 创世公共状态：区块树只含创世区块，账户树与存款树为空
func GenesisPublicState() PublicState {
	genesisOnce.Do(initGenesis)
	return genesisState
}

// PrivateState 账户私有状态
type PrivateState struct {
	AssetTreeRoot common.Hash `json:"assetTreeRoot"`
	NullifierRoot common.Hash `json:"nullifierRoot"`
	Nonce         uint32      `json:"nonce"`
	Salt          common.Hash `json:"salt"`
}

// GenesisPrivateState 初始私有状态
func GenesisPrivateState() PrivateState {
	return PrivateState{
		AssetTreeRoot: EmptyRoot(AssetTreeHeight),
		NullifierRoot: EmptyRoot(NullifierTreeHeight),
	}
}

// Commitment 私有状态承诺
func (s PrivateState) Commitment() common.Hash {
	return MiMC(s.AssetTreeRoot, s.NullifierRoot, U64(uint64(s.Nonce)), s.Salt)
}

// AssetLeaf 资产树叶子，索引为 token index
type AssetLeaf struct {
	IsInsufficient bool         `json:"isInsufficient"`
	Amount         *uint256.Int `json:"amount"`
}

// IsEmpty 空叶子哈希为 0
func (l AssetLeaf) IsEmpty() bool {
	return !l.IsInsufficient && (l.Amount == nil || l.Amount.IsZero())
}

// Hash 叶子哈希
func (l AssetLeaf) Hash() common.Hash {
	if l.IsEmpty() {
		return common.Hash{}
	}
	return MiMC(Bool(l.IsInsufficient), U256(l.Amount))
}

// Add 增加余额
func (l AssetLeaf) Add(amount *uint256.Int) (AssetLeaf, error) {
	sum, overflow := new(uint256.Int).AddOverflow(amountOrZero(l.Amount), amountOrZero(amount))
	if overflow || !AmountInField(sum) {
		return l, ErrAmountOverflow
	}
	return AssetLeaf{IsInsufficient: l.IsInsufficient, Amount: sum}, nil
}

// Sub 扣减余额；余额不足时保持叶子不变并返回 false
func (l AssetLeaf) Sub(amount *uint256.Int) (AssetLeaf, bool) {
	cur := amountOrZero(l.Amount)
	if cur.Lt(amountOrZero(amount)) {
		return l, false
	}
	return AssetLeaf{IsInsufficient: l.IsInsufficient, Amount: new(uint256.Int).Sub(cur, amountOrZero(amount))}, true
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// AmountEqual 比较两个金额（nil 视为 0）
func AmountEqual(a, b *uint256.Int) bool {
	return amountOrZero(a).Eq(amountOrZero(b))
}

// AccountLeaf 账户树叶子
type AccountLeaf struct {
	Pubkey          common.Hash `json:"pubkey"`
	LastBlockNumber uint32      `json:"lastBlockNumber"`
}

// IsEmpty 空叶子哈希为 0
func (l AccountLeaf) IsEmpty() bool {
	return l == AccountLeaf{}
}

// Hash 叶子哈希
func (l AccountLeaf) Hash() common.Hash {
	if l.IsEmpty() {
		return common.Hash{}
	}
	return MiMC(l.Pubkey, U64(uint64(l.LastBlockNumber)))
}

// Block 区块头
type Block struct {
	PrevBlockHash   common.Hash `json:"prevBlockHash"`
	DepositTreeRoot common.Hash `json:"depositTreeRoot"`
	TxTreeRoot      common.Hash `json:"txTreeRoot"`
	SignatureHash   common.Hash `json:"signatureHash"`
	BlockNumber     uint32      `json:"blockNumber"`
}

// Hash 区块哈希，同时作为区块树叶子
func (b Block) Hash() common.Hash {
	return MiMC(b.PrevBlockHash, b.DepositTreeRoot, b.TxTreeRoot, b.SignatureHash, U64(uint64(b.BlockNumber)))
}
