// Package registry 电路注册表：启动时在后台构建全部阶段的 groth16 密钥，
// 通过一次性发布的原子指针对外提供；未就绪时一律失败关闭。
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/ethereum/go-ethereum/common"

	proverconfig "github.com/weisyn/rollup-prover/internal/config/prover"
	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ErrAlreadyPublished 密钥集只能发布一次
var ErrAlreadyPublished = errors.New("circuit keys already published")

// keySet 已发布的密钥集合，发布后只读
type keySet struct {
	byStage  map[rollup.Stage]*engine.Keys
	builtAt  time.Time
	duration time.Duration
}

// Status 注册表状态
type Status struct {
	Ready         bool          `json:"ready"`
	Building      bool          `json:"building"`
	Stages        []string      `json:"stages"`
	BuildError    string        `json:"buildError,omitempty"`
	BuildDuration time.Duration `json:"buildDuration"`
	BuiltAt       time.Time     `json:"builtAt,omitempty"`
}

// Registry 电路注册表
type Registry struct {
	logger   log.Logger
	curve    ecc.ID
	parallel bool
	keysDir  string
	stages   []rollup.Stage

	keys     atomic.Pointer[keySet]
	building atomic.Bool
	started  atomic.Bool

	errMu    sync.RWMutex
	buildErr error

	readyCh chan struct{}
}

// New 创建注册表（不会立即构建）
func New(options *proverconfig.ProverOptions, logger log.Logger) (*Registry, error) {
	curveName := ""
	parallel := true
	keysDir := ""
	if options != nil {
		curveName = options.Curve
		parallel = options.ParallelSetup
		keysDir = options.KeysDir
	}
	curve, err := engine.ParseCurve(curveName)
	if err != nil {
		return nil, err
	}
	return &Registry{
		logger:   logger,
		curve:    curve,
		parallel: parallel,
		keysDir:  keysDir,
		stages:   rollup.AllStages(),
		readyCh:  make(chan struct{}),
	}, nil
}

// Start 在后台构建密钥；重复调用无效果
func (r *Registry) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		if err := r.Build(context.Background()); err != nil && r.logger != nil {
			r.logger.Errorf("❌ 电路注册表构建失败: %v", err)
		}
	}()
}

// Build 同步构建并发布全部阶段密钥
func (r *Registry) Build(ctx context.Context) error {
	if r.keys.Load() != nil {
		return nil
	}
	r.building.Store(true)
	defer r.building.Store(false)

	start := time.Now()
	if r.logger != nil {
		r.logger.Infof("开始构建电路密钥: stages=%d, curve=%s, parallel=%v, keys_dir=%q", len(r.stages), r.curve, r.parallel, r.keysDir)
	}

	built := make(map[rollup.Stage]*engine.Keys, len(r.stages))
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	setupOne := func(stage rollup.Stage) {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return
		}
		keys, loaded, err := engine.LoadOrSetup(stage, r.curve, r.keysDir)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		built[stage] = keys
		if r.logger != nil {
			r.logger.Debugf("阶段密钥就绪: stage=%s, constraints=%d, loaded=%v, took=%v", stage, keys.NbConstraints(), loaded, keys.SetupDuration)
		}
	}

	for _, stage := range r.stages {
		if r.parallel {
			wg.Add(1)
			go func(s rollup.Stage) {
				defer wg.Done()
				setupOne(s)
			}(stage)
		} else {
			setupOne(stage)
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		r.errMu.Lock()
		r.buildErr = err
		r.errMu.Unlock()
		return err
	}

	set := &keySet{byStage: built, builtAt: time.Now(), duration: time.Since(start)}
	if err := r.publish(set); err != nil {
		return err
	}
	if r.logger != nil {
		r.logger.Infof("✅ 电路注册表就绪: stages=%d, took=%v", len(built), set.duration)
	}
	return nil
}

// publish 一次性发布密钥集
func (r *Registry) publish(set *keySet) error {
	if !r.keys.CompareAndSwap(nil, set) {
		return ErrAlreadyPublished
	}
	close(r.readyCh)
	return nil
}

// Ready 是否已发布密钥，从不阻塞
func (r *Registry) Ready() bool {
	return r.keys.Load() != nil
}

// WaitReady 阻塞直到就绪或上下文结束
func (r *Registry) WaitReady(ctx context.Context) error {
	select {
	case <-r.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Keys 获取阶段密钥；未就绪时返回 ErrNotReady 类错误
func (r *Registry) Keys(stage rollup.Stage) (*engine.Keys, error) {
	set := r.keys.Load()
	if set == nil {
		r.errMu.RLock()
		buildErr := r.buildErr
		r.errMu.RUnlock()
		if buildErr != nil {
			return nil, fmt.Errorf("%w: %v", proverr.ErrRegistryFailed, buildErr)
		}
		return nil, proverr.ErrRegistryNotReady
	}
	keys, ok := set.byStage[stage]
	if !ok {
		return nil, proverr.Wrap(proverr.ErrUnsupportedStage, "stage=%s", stage)
	}
	return keys, nil
}

// Digest 阶段验证密钥摘要
func (r *Registry) Digest(stage rollup.Stage) (common.Hash, error) {
	keys, err := r.Keys(stage)
	if err != nil {
		return common.Hash{}, err
	}
	return keys.Digest(), nil
}

// Verify 按证明所属阶段验证
func (r *Registry) Verify(p *engine.Proof) error {
	if p == nil {
		return fmt.Errorf("%w: nil proof", engine.ErrVerification)
	}
	keys, err := r.Keys(p.Stage)
	if err != nil {
		return err
	}
	return keys.Verify(p)
}

// Prove 生成阶段证明并自验证
func (r *Registry) Prove(ctx context.Context, stage rollup.Stage, prevPisHash, witnessDigest common.Hash, publicInputs []byte) (*engine.Proof, error) {
	keys, err := r.Keys(stage)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, proverr.WrapProvingError(stage.String(), err)
	}
	proof, err := keys.Prove(prevPisHash, witnessDigest, publicInputs)
	if err != nil {
		return nil, proverr.WrapProvingError(stage.String(), err)
	}
	if err := keys.Verify(proof); err != nil {
		return nil, fmt.Errorf("%w: stage=%s, cause=%v", proverr.ErrProofVerification, stage, err)
	}
	return proof, nil
}

// Status 当前状态
func (r *Registry) Status() Status {
	st := Status{Building: r.building.Load()}
	r.errMu.RLock()
	if r.buildErr != nil {
		st.BuildError = r.buildErr.Error()
	}
	r.errMu.RUnlock()

	set := r.keys.Load()
	if set == nil {
		return st
	}
	st.Ready = true
	st.BuiltAt = set.builtAt
	st.BuildDuration = set.duration
	for _, stage := range r.stages {
		if _, ok := set.byStage[stage]; ok {
			st.Stages = append(st.Stages, stage.String())
		}
	}
	return st
}
