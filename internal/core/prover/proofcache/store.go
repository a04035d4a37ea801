// Package proofcache 证明缓存：按请求键去重的证明记录存储
//
// 🎯 **协议**：
//   - TryReserve：原子地写入 pending，键已存在时返回现有记录
//   - Complete：仅当键仍持有本作业的预留（或已过期）时写入终态
//   - Get：读取记录，不存在时返回 nil, nil
//
// 同一键上至多保留一个终态记录，终态记录在过期前不会被覆盖。
package proofcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	storeconfig "github.com/weisyn/rollup-prover/internal/config/store"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// Store 证明缓存接口
type Store interface {
	// TryReserve 键不存在时写入 pending 并返回 reserved=true；否则返回现有记录
	TryReserve(ctx context.Context, key string, pending *ProofRecord) (existing *ProofRecord, reserved bool, err error)

	// Complete 写入终态记录；预留已被替换时返回 false
	Complete(ctx context.Context, key string, record *ProofRecord) (bool, error)

	// Get 读取记录
	Get(ctx context.Context, key string) (*ProofRecord, error)

	// Ping 健康检查
	Ping(ctx context.Context) error

	// Close 释放资源
	Close() error
}

// New 按配置创建证明缓存
func New(options *storeconfig.StoreOptions, logger log.Logger, clk clock.Clock) (Store, error) {
	if options == nil {
		return nil, fmt.Errorf("store options cannot be nil")
	}

	var (
		store Store
		err   error
	)
	switch options.Backend {
	case storeconfig.BackendRedis:
		store, err = NewRedisStoreFromOptions(options, clk)
	case storeconfig.BackendBadger:
		store, err = NewBadgerStore(options.BadgerPath, options.KeyPrefix, options.ProofExpiration, logger, clk)
	case storeconfig.BackendMemory:
		store = NewMemoryStore(options.KeyPrefix, options.ProofExpiration, clk)
	default:
		return nil, fmt.Errorf("unknown proof store backend: %q", options.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("✅ 证明缓存已就绪: backend=%s, expiration=%s", options.Backend, options.ProofExpiration)

	if !options.ReadCache {
		return store, nil
	}
	cached, err := NewCachedStore(store, options.ReadCacheWindow, clk)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}

// writeTTL 写入时使用的生存时间：优先取记录自身的过期时间
func writeTTL(r *ProofRecord, now time.Time, fallback time.Duration) time.Duration {
	if ttl := r.ttlAt(now); ttl > 0 {
		return ttl
	}
	return fallback
}

var errStoreClosed = errors.New("store closed")

func errClosed(op, key string) error {
	return proverr.WrapStoreError(op, key, errStoreClosed)
}
