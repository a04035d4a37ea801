package rollup

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrAssetProof 资产树路径与当前资产根不符
var ErrAssetProof = errors.New("asset merkle proof does not match asset tree root")

// ErrNullifierUsed nullifier 已在前一私有状态的 nullifier 树中
var ErrNullifierUsed = errors.New("nullifier already used")

// NullifierIndex nullifier 在 nullifier 树中的位置：取低 64 位
//
// 低位碰撞的两笔入账中后到者会被拒绝，只影响可用性，不会放行重复入账。
func NullifierIndex(n common.Hash) uint64 {
	return binary.BigEndian.Uint64(n[common.HashLength-8:])
}

// NullifierLeaf 已使用 nullifier 的叶子值，恒不为空叶子
func NullifierLeaf(n common.Hash) common.Hash {
	return MiMC(n)
}

// ============================================================================
// 私有状态迁移（存款接收 / 转账接收共用）
// ============================================================================

// PrivateTransitionWitness 将一笔入账折叠进私有状态所需的见证
type PrivateTransitionWitness struct {
	TokenIndex       uint32       `json:"tokenIndex"`
	Amount           *uint256.Int `json:"amount"`
	Nullifier        common.Hash  `json:"nullifier"`
	NewSalt          common.Hash  `json:"newSalt"`
	PrevPrivateState PrivateState `json:"prevPrivateState"`
	PrevAssetLeaf    AssetLeaf    `json:"prevAssetLeaf"`
	AssetMerkleProof MerkleProof  `json:"assetMerkleProof"`
	// NullifierProof nullifier 位置为空叶子的路径（非成员证明）
	NullifierProof MerkleProof `json:"nullifierProof"`
}

// AssetProofValid 资产路径是否属于前一私有状态的资产根
func (w *PrivateTransitionWitness) AssetProofValid() bool {
	return w.AssetMerkleProof.Verify(w.PrevAssetLeaf.Hash(), uint64(w.TokenIndex), w.PrevPrivateState.AssetTreeRoot)
}

// NullifierUnused nullifier 位置在前一 nullifier 根下是否为空
func (w *PrivateTransitionWitness) NullifierUnused() bool {
	return w.NullifierProof.Verify(common.Hash{}, NullifierIndex(w.Nullifier), w.PrevPrivateState.NullifierRoot)
}

// NewPrivateState 计算入账后的私有状态
func (w *PrivateTransitionWitness) NewPrivateState() (PrivateState, error) {
	if !w.AssetProofValid() {
		return PrivateState{}, ErrAssetProof
	}
	if !w.NullifierUnused() {
		return PrivateState{}, ErrNullifierUsed
	}
	leaf, err := w.PrevAssetLeaf.Add(w.Amount)
	if err != nil {
		return PrivateState{}, err
	}
	return PrivateState{
		AssetTreeRoot: w.AssetMerkleProof.ComputeRoot(leaf.Hash(), uint64(w.TokenIndex)),
		NullifierRoot: w.NullifierProof.ComputeRoot(NullifierLeaf(w.Nullifier), NullifierIndex(w.Nullifier)),
		Nonce:         w.PrevPrivateState.Nonce,
		Salt:          w.NewSalt,
	}, nil
}

// ============================================================================
// 存款
// ============================================================================

// DepositWitness 存款及其在存款树中的位置
type DepositWitness struct {
	DepositIndex       uint32      `json:"depositIndex"`
	Deposit            Deposit     `json:"deposit"`
	DepositMerkleProof MerkleProof `json:"depositMerkleProof"`
}

// ReceiveDepositWitness 接收存款见证
type ReceiveDepositWitness struct {
	DepositWitness DepositWitness           `json:"depositWitness"`
	DepositSalt    common.Hash              `json:"depositSalt"`
	PrivateWitness PrivateTransitionWitness `json:"privateWitness"`
}

// ============================================================================
// 转账
// ============================================================================

// TransferWitness 转账及其在交易转账树中的位置
type TransferWitness struct {
	Tx                  Tx          `json:"tx"`
	Transfer            Transfer    `json:"transfer"`
	TransferIndex       uint32      `json:"transferIndex"`
	TransferMerkleProof MerkleProof `json:"transferMerkleProof"`
}

// InclusionValid 转账是否属于交易的转账树
func (w *TransferWitness) InclusionValid() bool {
	return w.TransferMerkleProof.Verify(w.Transfer.Hash(), uint64(w.TransferIndex), w.Tx.TransferTreeRoot)
}

// ReceiveTransferWitness 接收转账见证
//
// SenderBalanceProof 为发送方发送交易后的余额证明（编码后），
// BlockMerkleProof 证明发送方所在区块属于接收方当前区块树。
type ReceiveTransferWitness struct {
	TransferWitness    TransferWitness          `json:"transferWitness"`
	SenderBalanceProof string                   `json:"senderBalanceProof"`
	BlockMerkleProof   MerkleProof              `json:"blockMerkleProof"`
	PrivateWitness     PrivateTransitionWitness `json:"privateWitness"`
}

// ============================================================================
// 更新
// ============================================================================

// AccountMembershipProof 账户树成员证明；IsIncluded 为 false 时 Leaf 必须为空叶子
type AccountMembershipProof struct {
	IsIncluded  bool        `json:"isIncluded"`
	LeafIndex   uint64      `json:"leafIndex"`
	Leaf        AccountLeaf `json:"leaf"`
	MerkleProof MerkleProof `json:"merkleProof"`
}

// Verify 检查成员证明属于给定账户根
func (p *AccountMembershipProof) Verify(root common.Hash) bool {
	if !p.IsIncluded && !p.Leaf.IsEmpty() {
		return false
	}
	return p.MerkleProof.Verify(p.Leaf.Hash(), p.LeafIndex, root)
}

// UpdateWitness 将余额证明推进到某个有效性证明所在区块
type UpdateWitness struct {
	ValidityProof          string                 `json:"validityProof"`
	PrevBlockNumber        uint32                 `json:"prevBlockNumber"`
	AccountMembershipProof AccountMembershipProof `json:"accountMembershipProof"`
}

// ============================================================================
// 花费 / 发送
// ============================================================================

// SpentWitness 花费见证：定宽转账列表逐笔扣减私有资产
type SpentWitness struct {
	PrevPrivateState  PrivateState  `json:"prevPrivateState"`
	PrevBalances      []AssetLeaf   `json:"prevBalances"`
	AssetMerkleProofs []MerkleProof `json:"assetMerkleProofs"`
	Transfers         []Transfer    `json:"transfers"`
	Tx                Tx            `json:"tx"`
	NewSalt           common.Hash   `json:"newSalt"`
}

// AssetProofError 第 Index 笔转账的资产路径不匹配
type AssetProofError struct {
	Index int
}

func (e *AssetProofError) Error() string {
	return fmt.Sprintf("asset merkle proof %d does not match asset tree root", e.Index)
}

func (e *AssetProofError) Unwrap() error {
	return ErrAssetProof
}

// Apply 顺序应用全部扣减，返回新私有状态与不足标志位
//
// 调用方需先确认三个列表均为 NumTransfersInTx 宽。余额不足的转账仅置位，叶子保持不变。
func (w *SpentWitness) Apply() (PrivateState, uint64, error) {
	root := w.PrevPrivateState.AssetTreeRoot
	var flags uint64
	for i := range w.Transfers {
		t := w.Transfers[i]
		prev := w.PrevBalances[i]
		proof := w.AssetMerkleProofs[i]
		if !proof.Verify(prev.Hash(), uint64(t.TokenIndex), root) {
			return PrivateState{}, 0, &AssetProofError{Index: i}
		}
		next, ok := prev.Sub(t.Amount)
		if !ok {
			flags |= 1 << uint(i)
		}
		root = proof.ComputeRoot(next.Hash(), uint64(t.TokenIndex))
	}
	return PrivateState{
		AssetTreeRoot: root,
		NullifierRoot: w.PrevPrivateState.NullifierRoot,
		Nonce:         w.PrevPrivateState.Nonce + 1,
		Salt:          w.NewSalt,
	}, flags, nil
}

// SendWitness 发送见证
type SendWitness struct {
	Spent         SpentWitness `json:"spent"`
	ValidityProof string       `json:"validityProof"`
	TxIndex       uint32       `json:"txIndex"`
	TxMerkleProof MerkleProof  `json:"txMerkleProof"`
}

// ============================================================================
// 区块有效性
// ============================================================================

// AccountUpdate 区块内一个发送方的账户树更新
type AccountUpdate struct {
	AccountIndex uint64      `json:"accountIndex"`
	Pubkey       common.Hash `json:"pubkey"`
	PrevLeaf     AccountLeaf `json:"prevLeaf"`
	MerkleProof  MerkleProof `json:"merkleProof"`
}

// BlockValidityWitness 区块有效性见证
//
// BlockMerkleProof 证明前一区块树在 Block.BlockNumber 处为空槽。
type BlockValidityWitness struct {
	Block            Block           `json:"block"`
	BlockMerkleProof MerkleProof     `json:"blockMerkleProof"`
	AccountUpdates   []AccountUpdate `json:"accountUpdates"`
}

// AccountProofError 第 Index 个账户更新的路径不匹配
type AccountProofError struct {
	Index int
}

func (e *AccountProofError) Error() string {
	return fmt.Sprintf("account merkle proof %d does not match account tree root", e.Index)
}

// ApplyAccountUpdates 顺序应用账户更新，返回新账户根
func (w *BlockValidityWitness) ApplyAccountUpdates(prevRoot common.Hash) (common.Hash, error) {
	root := prevRoot
	for i, u := range w.AccountUpdates {
		if !u.MerkleProof.Verify(u.PrevLeaf.Hash(), u.AccountIndex, root) {
			return common.Hash{}, &AccountProofError{Index: i}
		}
		next := AccountLeaf{Pubkey: u.Pubkey, LastBlockNumber: w.Block.BlockNumber}
		root = u.MerkleProof.ComputeRoot(next.Hash(), u.AccountIndex)
	}
	return root, nil
}

// ============================================================================
// 提现
// ============================================================================

// WithdrawalWitness 提现见证；BalanceProof 为发送方发送该交易后的余额证明
type WithdrawalWitness struct {
	TransferWitness    TransferWitness `json:"transferWitness"`
	BalanceProof       string          `json:"balanceProof"`
	PrevWithdrawalHash common.Hash     `json:"prevWithdrawalHash"`
}

// ============================================================================
// 欺诈
// ============================================================================

// FraudWitness 欺诈证明见证：被挑战区块的有效性证明（编码后）
type FraudWitness struct {
	ValidityProof string `json:"validityProof"`
}
