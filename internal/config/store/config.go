// Package store 提供证明缓存（Proof Cache）后端配置
package store

import (
	"time"

	"github.com/weisyn/rollup-prover/pkg/types"
)

// StoreOptions 证明缓存配置选项
type StoreOptions struct {
	Backend string `json:"backend"`

	// redis
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db"`
	PoolSize      int           `json:"pool_size"`
	MinIdleConns  int           `json:"min_idle_conns"`
	DialTimeout   time.Duration `json:"dial_timeout"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`

	// badger
	BadgerPath string `json:"badger_path"`

	KeyPrefix       string        `json:"key_prefix"`
	ProofExpiration time.Duration `json:"proof_expiration"`

	// 终态记录读缓存（bigcache）
	ReadCache       bool          `json:"read_cache"`
	ReadCacheWindow time.Duration `json:"read_cache_window"`
}

// Config 证明缓存配置实现
type Config struct {
	options *StoreOptions
}

// New 创建证明缓存配置
func New(userConfig *types.UserStoreConfig) *Config {
	options := &StoreOptions{
		Backend:         defaultBackend,
		RedisAddr:       defaultRedisAddr,
		RedisDB:         defaultRedisDB,
		PoolSize:        defaultPoolSize,
		MinIdleConns:    defaultMinIdleConns,
		DialTimeout:     defaultDialTimeout,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		BadgerPath:      defaultBadgerPath,
		KeyPrefix:       defaultKeyPrefix,
		ProofExpiration: defaultProofExpiration,
		ReadCache:       defaultReadCache,
		ReadCacheWindow: defaultReadCacheWindow,
	}
	if userConfig != nil {
		applyUserStoreConfig(options, userConfig)
	}
	return &Config{options: options}
}

func applyUserStoreConfig(options *StoreOptions, user *types.UserStoreConfig) {
	if user.Backend != nil {
		options.Backend = *user.Backend
	}
	if user.RedisAddr != nil {
		options.RedisAddr = *user.RedisAddr
	}
	if user.RedisPassword != nil {
		options.RedisPassword = *user.RedisPassword
	}
	if user.RedisDB != nil {
		options.RedisDB = *user.RedisDB
	}
	if user.KeyPrefix != nil {
		options.KeyPrefix = *user.KeyPrefix
	}
	if user.BadgerPath != nil {
		options.BadgerPath = *user.BadgerPath
	}
	if user.ProofExpiration != nil {
		if d, err := time.ParseDuration(*user.ProofExpiration); err == nil && d > 0 {
			options.ProofExpiration = d
		}
	}
	if user.ReadCache != nil {
		options.ReadCache = *user.ReadCache
	}
}

// GetOptions 获取证明缓存配置选项
func (c *Config) GetOptions() *StoreOptions {
	return c.options
}
