package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// Proof 携带公共输入的阶段证明
type Proof struct {
	Stage             rollup.Stage
	Groth16           groth16.Proof
	PrevPisHash       common.Hash
	WitnessCommitment common.Hash
	// PublicInputs 本阶段公共输入的 JSON 编码
	PublicInputs []byte
}

// PisHash 本阶段公共输入摘要
func (p *Proof) PisHash() common.Hash {
	return rollup.HashBytes(p.PublicInputs)
}

// DecodePublicInputs 将证明公共输入解码为 T
func DecodePublicInputs[T any](p *Proof) (*T, error) {
	var out T
	if err := json.Unmarshal(p.PublicInputs, &out); err != nil {
		return nil, fmt.Errorf("解码公共输入失败: stage=%s: %w", p.Stage, err)
	}
	return &out, nil
}

// Prove 为给定前驱摘要、见证摘要与公共输入生成证明
func (k *Keys) Prove(prevPisHash, witnessDigest common.Hash, publicInputs []byte) (*Proof, error) {
	pisHash := rollup.HashBytes(publicInputs)
	commitment := WitnessCommitment(k.stage, prevPisHash, witnessDigest, pisHash)

	full, err := frontend.NewWitness(assignment(k.stage, prevPisHash, witnessDigest, pisHash, commitment), k.curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("构建witness失败: %w", err)
	}

	proof, err := groth16.Prove(k.ccs, k.pk, full)
	if err != nil {
		return nil, fmt.Errorf("生成证明失败: stage=%s: %w", k.stage, err)
	}

	return &Proof{
		Stage:             k.stage,
		Groth16:           proof,
		PrevPisHash:       rollup.Reduce(prevPisHash),
		WitnessCommitment: commitment,
		PublicInputs:      publicInputs,
	}, nil
}

// Verify 使用本阶段验证密钥验证证明
func (k *Keys) Verify(p *Proof) error {
	if p == nil || p.Groth16 == nil {
		return fmt.Errorf("%w: empty proof", ErrVerification)
	}
	if p.Stage != k.stage {
		return fmt.Errorf("%w: proof=%s, key=%s", ErrStageMismatch, p.Stage, k.stage)
	}

	public := &StageCircuit{
		Tag:               k.stage.Tag(),
		PrevPisHash:       fieldValue(p.PrevPisHash),
		PisHash:           fieldValue(p.PisHash()),
		WitnessCommitment: fieldValue(p.WitnessCommitment),
	}
	pw, err := frontend.NewWitness(public, k.curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("构建公开输入失败: %w", err)
	}

	if err := groth16.Verify(p.Groth16, k.vk, pw); err != nil {
		return fmt.Errorf("%w: stage=%s: %v", ErrVerification, k.stage, err)
	}
	return nil
}

// MarshalGroth16 序列化 groth16 证明
func MarshalGroth16(p groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("序列化证明失败: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalGroth16 反序列化 groth16 证明
func (k *Keys) UnmarshalGroth16(data []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(k.curve)
	if _, err := proof.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("反序列化证明失败: %w", err)
	}
	return proof, nil
}
