package engine

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// 密钥文件格式：magic ‖ 电路形状摘要 ‖ u64 len ‖ pk ‖ u64 len ‖ vk
var keyFileMagic = [4]byte{'R', 'P', 'K', '1'}

// maxKeyPart 单个密钥段的上限
const maxKeyPart = 1 << 30

var (
	// ErrKeyFileCorrupt 密钥文件无法解析
	ErrKeyFileCorrupt = errors.New("circuit key file is corrupt")

	// ErrKeyFileStale 密钥文件与当前电路不匹配（电路或 gnark 版本变化）
	ErrKeyFileStale = errors.New("circuit key file does not match compiled circuit")
)

// KeyFile 阶段密钥文件路径
func KeyFile(dir string, stage rollup.Stage, curve ecc.ID) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.keys", stage, curve))
}

// LoadOrSetup 从 dir 加载阶段密钥，不存在时执行可信设置并落盘
//
// dir 为空时不落盘。多个进程并发初始化同一目录时，以最先落盘的密钥为准，
// 其余进程丢弃自己的设置结果改为加载，保证共享同一验证密钥摘要。
// 返回值 loaded 表示密钥来自文件。
func LoadOrSetup(stage rollup.Stage, curve ecc.ID, dir string) (keys *Keys, loaded bool, err error) {
	if dir == "" {
		keys, err = Setup(stage, curve)
		return keys, false, err
	}
	path := KeyFile(dir, stage, curve)
	if keys, err = Load(stage, curve, path); err == nil {
		return keys, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	keys, err = Setup(stage, curve)
	if err != nil {
		return nil, false, err
	}
	if err := keys.save(dir, path); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return nil, false, err
		}
		// 其他进程抢先落盘
		keys, err = Load(stage, curve, path)
		return keys, err == nil, err
	}
	return keys, false, nil
}

// Load 读取密钥文件；文件不存在时返回的错误满足 errors.Is(err, os.ErrNotExist)
func Load(stage rollup.Stage, curve ecc.ID, path string) (*Keys, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	start := time.Now()

	ccs, err := compile(stage, curve)
	if err != nil {
		return nil, err
	}
	ccsDigest := constraintDigest(curve, ccs)

	r := bufio.NewReader(f)
	var header [4 + common.HashLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyFileCorrupt, path, err)
	}
	if !bytes.Equal(header[:4], keyFileMagic[:]) {
		return nil, fmt.Errorf("%w: %s: bad magic", ErrKeyFileCorrupt, path)
	}
	if common.BytesToHash(header[4:]) != ccsDigest {
		return nil, fmt.Errorf("%w: %s", ErrKeyFileStale, path)
	}

	pk := groth16.NewProvingKey(curve)
	if err := readPart(r, pk); err != nil {
		return nil, fmt.Errorf("%w: %s: proving key: %v", ErrKeyFileCorrupt, path, err)
	}
	vk := groth16.NewVerifyingKey(curve)
	if err := readPart(r, vk); err != nil {
		return nil, fmt.Errorf("%w: %s: verifying key: %v", ErrKeyFileCorrupt, path, err)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: %s: trailing bytes", ErrKeyFileCorrupt, path)
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

// save 写临时文件后以硬链接发布；目标已存在时返回 os.ErrExist
func (k *Keys) save(dir, path string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("创建密钥目录失败: %w", err)
	}
	ccsDigest := constraintDigest(k.curve, k.ccs)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建密钥文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	_, _ = w.Write(keyFileMagic[:])
	_, _ = w.Write(ccsDigest[:])
	if err := writePart(w, k.pk); err != nil {
		tmp.Close()
		return err
	}
	if err := writePart(w, k.vk); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("写入密钥文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("写入密钥文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入密钥文件失败: %w", err)
	}
	// 硬链接不会覆盖已存在的目标
	return os.Link(tmp.Name(), path)
}

// constraintDigest 电路形状摘要：曲线与各类变量、约束数量
func constraintDigest(curve ecc.ID, ccs constraint.ConstraintSystem) common.Hash {
	h := sha256.New()
	_, _ = h.Write([]byte(curve.String()))
	for _, v := range []int{
		ccs.GetNbConstraints(),
		ccs.GetNbPublicVariables(),
		ccs.GetNbSecretVariables(),
		ccs.GetNbInternalVariables(),
	} {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		_, _ = h.Write(b[:])
	}
	return common.BytesToHash(h.Sum(nil))
}

func writePart(w io.Writer, part io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := part.WriteTo(&buf); err != nil {
		return fmt.Errorf("序列化密钥失败: %w", err)
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(buf.Len()))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readPart(r io.Reader, part io.ReaderFrom) error {
	var n [8]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint64(n[:])
	if size == 0 || size > maxKeyPart {
		return fmt.Errorf("part size %d out of range", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	_, err := part.ReadFrom(bytes.NewReader(data))
	return err
}
