// Package prover 提供证明执行（电路注册表 + 任务执行器）配置
package prover

import (
	"time"

	"github.com/weisyn/rollup-prover/pkg/types"
)

// ProverOptions 证明执行配置选项
type ProverOptions struct {
	Curve               string        `json:"curve"`
	MaxConcurrentProofs int           `json:"max_concurrent_proofs"`
	MaxQueuedJobs       int           `json:"max_queued_jobs"`
	ProofTimeout        time.Duration `json:"proof_timeout"`
	ParallelSetup       bool          `json:"parallel_setup"`
	KeysDir             string        `json:"keys_dir"`
}

// Config 证明执行配置实现
type Config struct {
	options *ProverOptions
}

// New 创建证明执行配置
func New(userConfig *types.UserProverConfig) *Config {
	options := &ProverOptions{
		Curve:               defaultCurve,
		MaxConcurrentProofs: defaultMaxConcurrentProofs(),
		MaxQueuedJobs:       defaultMaxQueuedJobs,
		ProofTimeout:        defaultProofTimeout,
		ParallelSetup:       defaultParallelSetup,
		KeysDir:             defaultKeysDir,
	}
	if userConfig != nil {
		if userConfig.Curve != nil {
			options.Curve = *userConfig.Curve
		}
		if userConfig.MaxConcurrentProofs != nil && *userConfig.MaxConcurrentProofs > 0 {
			options.MaxConcurrentProofs = *userConfig.MaxConcurrentProofs
		}
		if userConfig.MaxQueuedJobs != nil && *userConfig.MaxQueuedJobs > 0 {
			options.MaxQueuedJobs = *userConfig.MaxQueuedJobs
		}
		if userConfig.ProofTimeout != nil {
			if d, err := time.ParseDuration(*userConfig.ProofTimeout); err == nil && d > 0 {
				options.ProofTimeout = d
			}
		}
		if userConfig.ParallelSetup != nil {
			options.ParallelSetup = *userConfig.ParallelSetup
		}
		if userConfig.KeysDir != nil {
			options.KeysDir = *userConfig.KeysDir
		}
	}
	return &Config{options: options}
}

// GetOptions 获取证明执行配置选项
func (c *Config) GetOptions() *ProverOptions {
	return c.options
}
