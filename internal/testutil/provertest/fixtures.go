package provertest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 公共链模拟
// ============================================================================

// Chain 维护存款树、区块树、账户树，按协议规则生成区块见证
type Chain struct {
	Deposits *rollup.SparseMerkleTree
	Blocks   *rollup.SparseMerkleTree
	Accounts *rollup.SparseMerkleTree

	State       rollup.PublicState
	ValidityPIs rollup.ValidityPublicInputs

	nextDeposit  uint32
	accountIndex map[common.Hash]uint64
	accountLeaf  map[common.Hash]rollup.AccountLeaf
}

// NewChain 从创世状态开始
func NewChain() *Chain {
	c := &Chain{
		Deposits:     rollup.NewSparseMerkleTree(rollup.DepositTreeHeight),
		Blocks:       rollup.NewSparseMerkleTree(rollup.BlockTreeHeight),
		Accounts:     rollup.NewSparseMerkleTree(rollup.AccountTreeHeight),
		State:        rollup.GenesisPublicState(),
		ValidityPIs:  rollup.GenesisValidityPublicInputs(),
		accountIndex: make(map[common.Hash]uint64),
		accountLeaf:  make(map[common.Hash]rollup.AccountLeaf),
	}
	c.Blocks.Set(0, rollup.GenesisBlock().Hash())
	return c
}

// AddDeposit 追加存款，返回存款见证（需要随后出块才会进入公共状态）
func (c *Chain) AddDeposit(pubkey, salt common.Hash, token uint32, amount uint64) rollup.DepositWitness {
	d := rollup.Deposit{
		PubkeySaltHash: rollup.PubkeySaltHash(pubkey, salt),
		TokenIndex:     token,
		Amount:         uint256.NewInt(amount),
	}
	idx := c.nextDeposit
	c.nextDeposit++
	c.Deposits.Set(uint64(idx), d.LeafHash())
	return rollup.DepositWitness{
		DepositIndex:       idx,
		Deposit:            d,
		DepositMerkleProof: c.Deposits.Prove(uint64(idx)),
	}
}

// DepositProof 按当前存款树重新生成存款路径
func (c *Chain) DepositProof(w rollup.DepositWitness) rollup.DepositWitness {
	w.DepositMerkleProof = c.Deposits.Prove(uint64(w.DepositIndex))
	return w
}

// SenderTx 区块中的一笔发送
type SenderTx struct {
	Pubkey common.Hash
	Tx     rollup.Tx
}

// TxInclusion 发送方交易在交易树中的位置
type TxInclusion struct {
	Index uint32
	Proof rollup.MerkleProof
}

// BlockResult 出块结果
type BlockResult struct {
	Witness      rollup.BlockValidityWitness
	ValidityPIs  rollup.ValidityPublicInputs
	Inclusions   map[common.Hash]TxInclusion
	PrevAccounts map[common.Hash]rollup.AccountLeaf
}

// PostBlock 出块并推进公共状态
func (c *Chain) PostBlock(senders ...SenderTx) BlockResult {
	txTree := rollup.NewSparseMerkleTree(rollup.TxTreeHeight)
	for i, s := range senders {
		txTree.Set(uint64(i), rollup.TxLeaf(s.Pubkey, s.Tx.Hash()))
	}

	number := c.State.BlockNumber + 1
	block := rollup.Block{
		PrevBlockHash:   c.State.BlockHash,
		DepositTreeRoot: c.Deposits.Root(),
		TxTreeRoot:      txTree.Root(),
		SignatureHash:   rollup.MiMC(rollup.U64(uint64(number)), txTree.Root()),
		BlockNumber:     number,
	}

	res := BlockResult{
		Inclusions:   make(map[common.Hash]TxInclusion),
		PrevAccounts: make(map[common.Hash]rollup.AccountLeaf),
	}
	res.Witness.Block = block
	res.Witness.BlockMerkleProof = c.Blocks.Prove(uint64(number))

	prevAccountRoot := c.Accounts.Root()
	prevBlockRoot := c.Blocks.Root()
	for i, s := range senders {
		idx, ok := c.accountIndex[s.Pubkey]
		if !ok {
			idx = uint64(len(c.accountIndex) + 1)
			c.accountIndex[s.Pubkey] = idx
		}
		prev := c.accountLeaf[s.Pubkey]
		res.PrevAccounts[s.Pubkey] = prev
		res.Witness.AccountUpdates = append(res.Witness.AccountUpdates, rollup.AccountUpdate{
			AccountIndex: idx,
			Pubkey:       s.Pubkey,
			PrevLeaf:     prev,
			MerkleProof:  c.Accounts.Prove(idx),
		})
		next := rollup.AccountLeaf{Pubkey: s.Pubkey, LastBlockNumber: number}
		c.Accounts.Set(idx, next.Hash())
		c.accountLeaf[s.Pubkey] = next
		res.Inclusions[s.Pubkey] = TxInclusion{Index: uint32(i), Proof: txTree.Prove(uint64(i))}
	}

	c.Blocks.Set(uint64(number), block.Hash())
	res.ValidityPIs = rollup.ValidityPublicInputs{
		PrevAccountTreeRoot: prevAccountRoot,
		PrevBlockTreeRoot:   prevBlockRoot,
		AccountTreeRoot:     c.Accounts.Root(),
		BlockTreeRoot:       c.Blocks.Root(),
		DepositTreeRoot:     block.DepositTreeRoot,
		TxTreeRoot:          block.TxTreeRoot,
		BlockHash:           block.Hash(),
		BlockNumber:         number,
	}
	c.ValidityPIs = res.ValidityPIs
	c.State = res.ValidityPIs.PublicState()
	return res
}

// Membership 账户在当前账户树中的成员证明
func (c *Chain) Membership(pubkey common.Hash) rollup.AccountMembershipProof {
	idx, ok := c.accountIndex[pubkey]
	if !ok {
		// 空槽：选一个从未分配的索引
		free := uint64(1 << 20)
		return rollup.AccountMembershipProof{
			LeafIndex:   free,
			MerkleProof: c.Accounts.Prove(free),
		}
	}
	return rollup.AccountMembershipProof{
		IsIncluded:  true,
		LeafIndex:   idx,
		Leaf:        c.accountLeaf[pubkey],
		MerkleProof: c.Accounts.Prove(idx),
	}
}

// BlockProof 区块在当前区块树中的路径
func (c *Chain) BlockProof(number uint32) rollup.MerkleProof {
	return c.Blocks.Prove(uint64(number))
}

// ============================================================================
// 账户私有状态模拟
// ============================================================================

// Account 维护一个用户的资产树与私有状态
type Account struct {
	Pubkey common.Hash
	State  rollup.PrivateState

	assets     *rollup.SparseMerkleTree
	nullifiers *rollup.SparseMerkleTree
	leaves     map[uint32]rollup.AssetLeaf
	salt       byte
}

// NewAccount 创建账户
func NewAccount(seed byte) *Account {
	return &Account{
		Pubkey:     common.BytesToHash([]byte{0xa0, seed}),
		State:      rollup.GenesisPrivateState(),
		assets:     rollup.NewSparseMerkleTree(rollup.AssetTreeHeight),
		nullifiers: rollup.NewSparseMerkleTree(rollup.NullifierTreeHeight),
		leaves:     make(map[uint32]rollup.AssetLeaf),
		salt:       seed,
	}
}

func (a *Account) nextSalt() common.Hash {
	a.salt++
	return common.BytesToHash([]byte{0x5a, a.salt, byte(a.State.Nonce)})
}

// Balance 某资产余额
func (a *Account) Balance(token uint32) uint64 {
	leaf := a.leaves[token]
	if leaf.Amount == nil {
		return 0
	}
	return leaf.Amount.Uint64()
}

// Transition 按当前本地状态生成入账见证，不推进状态
//
// nullifier 已用过时生成的路径无法通过非成员检查，用于构造重复入账。
func (a *Account) Transition(token uint32, amount *uint256.Int, nullifier common.Hash) rollup.PrivateTransitionWitness {
	return rollup.PrivateTransitionWitness{
		TokenIndex:       token,
		Amount:           amount,
		Nullifier:        nullifier,
		NewSalt:          a.nextSalt(),
		PrevPrivateState: a.State,
		PrevAssetLeaf:    a.leaves[token],
		AssetMerkleProof: a.assets.Prove(uint64(token)),
		NullifierProof:   a.nullifiers.Prove(rollup.NullifierIndex(nullifier)),
	}
}

// Receive 生成入账见证并推进本地私有状态
func (a *Account) Receive(token uint32, amount *uint256.Int, nullifier common.Hash) rollup.PrivateTransitionWitness {
	w := a.Transition(token, amount, nullifier)
	next, err := w.NewPrivateState()
	if err != nil {
		panic(err)
	}
	leaf, _ := a.leaves[token].Add(amount)
	a.leaves[token] = leaf
	a.assets.Set(uint64(token), leaf.Hash())
	a.nullifiers.Set(rollup.NullifierIndex(nullifier), rollup.NullifierLeaf(nullifier))
	a.State = next
	return w
}

// Spend 构造定宽花费见证并推进本地私有状态；不足 64 笔以空转账补齐
func (a *Account) Spend(transfers ...rollup.Transfer) rollup.SpentWitness {
	padded := make([]rollup.Transfer, rollup.NumTransfersInTx)
	copy(padded, transfers)
	for i := len(transfers); i < len(padded); i++ {
		padded[i] = rollup.Transfer{Amount: uint256.NewInt(0)}
	}

	w := rollup.SpentWitness{
		PrevPrivateState: a.State,
		Transfers:        padded,
		Tx:               rollup.Tx{TransferTreeRoot: rollup.TransferTreeRoot(padded), Nonce: a.State.Nonce},
		NewSalt:          a.nextSalt(),
	}
	for _, t := range padded {
		leaf := a.leaves[t.TokenIndex]
		w.PrevBalances = append(w.PrevBalances, leaf)
		w.AssetMerkleProofs = append(w.AssetMerkleProofs, a.assets.Prove(uint64(t.TokenIndex)))
		if next, ok := leaf.Sub(t.Amount); ok {
			a.leaves[t.TokenIndex] = next
			a.assets.Set(uint64(t.TokenIndex), next.Hash())
		}
	}
	next, _, err := w.Apply()
	if err != nil {
		panic(err)
	}
	a.State = next
	return w
}

// TransferWitness 交易中第 index 笔转账的包含见证
func TransferWitness(spent rollup.SpentWitness, index uint32) rollup.TransferWitness {
	tree := rollup.NewSparseMerkleTree(rollup.TransferTreeHeight)
	for i, t := range spent.Transfers {
		tree.Set(uint64(i), t.Hash())
	}
	return rollup.TransferWitness{
		Tx:                  spent.Tx,
		Transfer:            spent.Transfers[index],
		TransferIndex:       index,
		TransferMerkleProof: tree.Prove(uint64(index)),
	}
}
