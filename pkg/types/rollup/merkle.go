package rollup

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// 树高与定宽集合大小
const (
	DepositTreeHeight   = 32
	BlockTreeHeight     = 32
	AccountTreeHeight   = 32
	AssetTreeHeight     = 32
	TransferTreeHeight  = 6
	TxTreeHeight        = 7
	NullifierTreeHeight = 64

	// NumTransfersInTx 每笔交易固定包含的转账数量（不足以空转账补齐）
	NumTransfersInTx = 1 << TransferTreeHeight
	// NumSendersInBlock 每个区块最多的发送方数量
	NumSendersInBlock = 1 << TxTreeHeight
)

// MerkleProof 默克尔路径，Siblings[i] 为第 i 层（自叶向根）的兄弟节点
type MerkleProof struct {
	Siblings []common.Hash `json:"siblings"`
}

// Height 路径高度
func (p MerkleProof) Height() int {
	return len(p.Siblings)
}

// ComputeRoot 由叶子与索引沿路径计算根
//
// 索引第 i 位为 0 表示当前节点位于左侧。
func (p MerkleProof) ComputeRoot(leaf common.Hash, index uint64) common.Hash {
	h := leaf
	for i, sibling := range p.Siblings {
		if (index>>uint(i))&1 == 0 {
			h = MiMC(h, sibling)
		} else {
			h = MiMC(sibling, h)
		}
	}
	return h
}

// Verify 检查叶子在给定索引处属于 root
func (p MerkleProof) Verify(leaf common.Hash, index uint64, root common.Hash) bool {
	if p.Height() < 64 && index>>uint(p.Height()) != 0 {
		return false
	}
	return p.ComputeRoot(leaf, index) == root
}

// ============================================================================
// 稀疏默克尔树
// ============================================================================

var (
	emptyNodesMu sync.Mutex
	emptyNodes   = map[int][]common.Hash{}
)

// EmptyNodes 返回高度为 height 的空树各层默认节点，[0] 为空叶子，[height] 为空根
func EmptyNodes(height int) []common.Hash {
	emptyNodesMu.Lock()
	defer emptyNodesMu.Unlock()

	if nodes, ok := emptyNodes[height]; ok {
		return nodes
	}
	nodes := make([]common.Hash, height+1)
	for i := 0; i < height; i++ {
		nodes[i+1] = MiMC(nodes[i], nodes[i])
	}
	emptyNodes[height] = nodes
	return nodes
}

// EmptyRoot 返回空树的根
func EmptyRoot(height int) common.Hash {
	return EmptyNodes(height)[height]
}

type nodeKey struct {
	level int
	index uint64
}

// SparseMerkleTree 内存稀疏默克尔树，仅保存非默认节点
//
// ⚠️ 非并发安全，调用方负责同步。
type SparseMerkleTree struct {
	height   int
	nodes    map[nodeKey]common.Hash
	defaults []common.Hash
}

// NewSparseMerkleTree 创建指定高度的空树
func NewSparseMerkleTree(height int) *SparseMerkleTree {
	return &SparseMerkleTree{
		height:   height,
		nodes:    make(map[nodeKey]common.Hash),
		defaults: EmptyNodes(height),
	}
}

// Height 树高
func (t *SparseMerkleTree) Height() int {
	return t.height
}

func (t *SparseMerkleTree) node(level int, index uint64) common.Hash {
	if h, ok := t.nodes[nodeKey{level, index}]; ok {
		return h
	}
	return t.defaults[level]
}

// Set 写入叶子并更新到根的路径
func (t *SparseMerkleTree) Set(index uint64, leaf common.Hash) {
	t.nodes[nodeKey{0, index}] = leaf
	h := leaf
	idx := index
	for level := 0; level < t.height; level++ {
		if idx&1 == 0 {
			h = MiMC(h, t.node(level, idx+1))
		} else {
			h = MiMC(t.node(level, idx-1), h)
		}
		idx >>= 1
		t.nodes[nodeKey{level + 1, idx}] = h
	}
}

// Get 读取叶子
func (t *SparseMerkleTree) Get(index uint64) common.Hash {
	return t.node(0, index)
}

// Root 当前根
func (t *SparseMerkleTree) Root() common.Hash {
	return t.node(t.height, 0)
}

// Prove 生成叶子的默克尔路径
func (t *SparseMerkleTree) Prove(index uint64) MerkleProof {
	siblings := make([]common.Hash, t.height)
	idx := index
	for level := 0; level < t.height; level++ {
		siblings[level] = t.node(level, idx^1)
		idx >>= 1
	}
	return MerkleProof{Siblings: siblings}
}
