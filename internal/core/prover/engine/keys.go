package engine

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

var (
	// ErrUnsupportedCurve 不支持的椭圆曲线
	ErrUnsupportedCurve = errors.New("unsupported curve")

	// ErrStageMismatch 证明阶段与密钥阶段不一致
	ErrStageMismatch = errors.New("proof stage does not match key stage")

	// ErrVerification groth16 验证失败
	ErrVerification = errors.New("groth16 verification failed")
)

// ParseCurve 解析配置中的曲线名称
//
// 链下 MiMC 实现固定在 BN254 标量域上，其他曲线无法与电路哈希对齐。
func ParseCurve(name string) (ecc.ID, error) {
	switch strings.ToLower(name) {
	case "", "bn254":
		return ecc.BN254, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurve, name)
	}
}

// Keys 单个阶段的编译电路与 groth16 密钥
type Keys struct {
	stage  rollup.Stage
	curve  ecc.ID
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	digest common.Hash

	// SetupDuration 可信设置耗时
	SetupDuration time.Duration
}

// Setup 编译阶段电路并执行 groth16 可信设置
func Setup(stage rollup.Stage, curve ecc.ID) (*Keys, error) {
	if stage.Tag() == 0 {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	start := time.Now()

	ccs, err := compile(stage, curve)
	if err != nil {
		return nil, err
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("生成可信设置失败: stage=%s: %w", stage, err)
	}

	digest, err := VerifyingKeyDigest(vk)
	if err != nil {
		return nil, err
	}

	return &Keys{
		stage:         stage,
		curve:         curve,
		ccs:           ccs,
		pk:            pk,
		vk:            vk,
		digest:        digest,
		SetupDuration: time.Since(start),
	}, nil
}

func compile(stage rollup.Stage, curve ecc.ID) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(curve.ScalarField(), r1cs.NewBuilder, &StageCircuit{Tag: stage.Tag()})
	if err != nil {
		return nil, fmt.Errorf("编译电路失败: stage=%s: %w", stage, err)
	}
	return ccs, nil
}

// VerifyingKeyDigest 验证密钥摘要：sha256(vk 序列化)
func VerifyingKeyDigest(vk groth16.VerifyingKey) (common.Hash, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return common.Hash{}, fmt.Errorf("序列化验证密钥失败: %w", err)
	}
	return common.Hash(sha256.Sum256(buf.Bytes())), nil
}

// Stage 密钥所属阶段
func (k *Keys) Stage() rollup.Stage { return k.stage }

// Curve 曲线
func (k *Keys) Curve() ecc.ID { return k.curve }

// Digest 验证密钥摘要
func (k *Keys) Digest() common.Hash { return k.digest }

// NbConstraints 约束数量
func (k *Keys) NbConstraints() int { return k.ccs.GetNbConstraints() }
