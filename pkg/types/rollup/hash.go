// Package rollup 定义分层 rollup 协议的见证、状态与公共输入类型
//
// 所有承诺、nullifier 与默克尔树节点均使用 BN254 标量域上的 MiMC 哈希，
// 与证明引擎电路内的哈希保持一致。哈希值统一以 common.Hash 表示（32 字节大端），
// 参与哈希前按标量域取模归约。
package rollup

import (
	"crypto/sha256"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// fieldModulus BN254 标量域模数
var fieldModulus = uint256.MustFromBig(fr.Modulus())

// AmountInField 金额严格小于标量域模数（nil 视为 0）
//
// 金额按域元素参与哈希，x 与 x+p 的哈希相同；超出范围的金额必须在校验时拒绝。
func AmountInField(v *uint256.Int) bool {
	return v == nil || v.Lt(fieldModulus)
}

// ToField 将 32 字节哈希归约为标量域元素
func ToField(h common.Hash) fr.Element {
	var e fr.Element
	e.SetBytes(h[:])
	return e
}

// FromField 将标量域元素编码为 32 字节大端哈希
func FromField(e fr.Element) common.Hash {
	return common.Hash(e.Bytes())
}

// Reduce 返回 h 在标量域内的规范表示
func Reduce(h common.Hash) common.Hash {
	return FromField(ToField(h))
}

// U64 将整数编码为哈希输入
func U64(v uint64) common.Hash {
	var e fr.Element
	e.SetUint64(v)
	return FromField(e)
}

// Bool 将布尔值编码为哈希输入
func Bool(b bool) common.Hash {
	if b {
		return U64(1)
	}
	return U64(0)
}

// U256 将金额编码为哈希输入（nil 视为 0）
func U256(v *uint256.Int) common.Hash {
	if v == nil {
		return common.Hash{}
	}
	return common.Hash(v.Bytes32())
}

// MiMC 对输入序列计算 MiMC 哈希
//
// 每个输入先归约为标量域元素，再按 32 字节大端块写入哈希器。
func MiMC(inputs ...common.Hash) common.Hash {
	h := mimc.NewMiMC()
	for _, in := range inputs {
		e := ToField(in)
		b := e.Bytes()
		// 规范编码的元素写入不会失败
		_, _ = h.Write(b[:])
	}
	return common.BytesToHash(h.Sum(nil))
}

// HashBytes 计算任意字节串的域内摘要：reduce(sha256(data))
func HashBytes(data []byte) common.Hash {
	sum := sha256.Sum256(data)
	return Reduce(common.Hash(sum))
}

// PubkeySaltHash 计算存款接收方承诺
func PubkeySaltHash(pubkey, salt common.Hash) common.Hash {
	return MiMC(pubkey, salt)
}
