// Package codec 证明的线上编码
//
// 格式：base64std(snappy(vkDigest32 ‖ uvarint len ‖ groth16 proof ‖ prevPisHash32 ‖
// witnessCommitment32 ‖ uvarint len ‖ publicInputs JSON))。
// 解码时验证密钥摘要必须与期望阶段之一一致，否则拒绝。
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/snappy"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// MaxDecodedSize 解压后的最大字节数
const MaxDecodedSize = 4 << 20

// KeyLookup 按阶段查找密钥，通常由电路注册表实现
type KeyLookup interface {
	Keys(stage rollup.Stage) (*engine.Keys, error)
}

// Codec 证明编解码器
type Codec struct {
	keys KeyLookup
}

// New 创建编解码器
func New(keys KeyLookup) *Codec {
	return &Codec{keys: keys}
}

// Encode 编码证明
func (c *Codec) Encode(p *engine.Proof) (string, error) {
	if p == nil || p.Groth16 == nil {
		return "", errors.New("cannot encode empty proof")
	}
	keys, err := c.keys.Keys(p.Stage)
	if err != nil {
		return "", err
	}
	raw, err := engine.MarshalGroth16(p.Groth16)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	digest := keys.Digest()
	buf.Write(digest[:])
	writeBytes(&buf, raw)
	buf.Write(p.PrevPisHash[:])
	buf.Write(p.WitnessCommitment[:])
	writeBytes(&buf, p.PublicInputs)

	return base64.StdEncoding.EncodeToString(snappy.Encode(nil, buf.Bytes())), nil
}

// Decode 解码证明，allowed 为可接受的阶段集合
func (c *Codec) Decode(encoded string, allowed ...rollup.Stage) (*engine.Proof, error) {
	if encoded == "" {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "empty proof")
	}
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "base64: %v", err)
	}
	n, err := snappy.DecodedLen(compressed)
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "snappy: %v", err)
	}
	if n > MaxDecodedSize {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "decoded size %d exceeds %d", n, MaxDecodedSize)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "snappy: %v", err)
	}

	r := bytes.NewReader(raw)
	digest, err := readHash(r)
	if err != nil {
		return nil, err
	}

	keys, err := c.match(digest, allowed)
	if err != nil {
		return nil, err
	}

	proofBytes, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	prev, err := readHash(r)
	if err != nil {
		return nil, err
	}
	commitment, err := readHash(r)
	if err != nil {
		return nil, err
	}
	pis, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "%d trailing bytes", r.Len())
	}

	g, err := keys.UnmarshalGroth16(proofBytes)
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "%v", err)
	}

	return &engine.Proof{
		Stage:             keys.Stage(),
		Groth16:           g,
		PrevPisHash:       prev,
		WitnessCommitment: commitment,
		PublicInputs:      pis,
	}, nil
}

// match 找到摘要对应的阶段密钥
func (c *Codec) match(digest common.Hash, allowed []rollup.Stage) (*engine.Keys, error) {
	for _, stage := range allowed {
		keys, err := c.keys.Keys(stage)
		if err != nil {
			return nil, err
		}
		if keys.Digest() == digest {
			return keys, nil
		}
	}
	return nil, fmt.Errorf("%w: digest=%s, allowed=%v", proverr.ErrDigestMismatch, digest.Hex(), allowed)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf.Write(lenBuf[:n])
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "length prefix: %v", err)
	}
	if n > uint64(r.Len()) {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "length %d exceeds remaining %d", n, r.Len())
	}
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil && n > 0 {
		return nil, proverr.Wrap(proverr.ErrMalformedProof, "%v", err)
	}
	return out, nil
}

func readHash(r *bytes.Reader) (common.Hash, error) {
	var h common.Hash
	if r.Len() < common.HashLength {
		return h, proverr.Wrap(proverr.ErrMalformedProof, "truncated hash")
	}
	_, _ = r.Read(h[:])
	return h, nil
}
