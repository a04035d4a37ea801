package proofcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
)

// CachedStore 终态记录的进程内读缓存
//
// 只缓存 succeeded/failed 记录：终态在过期前不可变，命中即权威；
// pending 记录始终回源。轮询请求因此不必每次访问后端。
type CachedStore struct {
	inner Store
	cache *bigcache.BigCache
	clock clock.Clock
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore 包装后端存储
func NewCachedStore(inner Store, window time.Duration, clk clock.Clock) (*CachedStore, error) {
	if window <= 0 {
		window = 10 * time.Minute
	}
	cfg := bigcache.DefaultConfig(window)
	cfg.Shards = 256
	cfg.MaxEntriesInWindow = 64 * 1024
	cfg.MaxEntrySize = 4 * 1024
	cfg.CleanWindow = window / 2
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create read cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache, clock: clk}, nil
}

// cached 读取缓存中的终态记录
func (s *CachedStore) cached(key string) *ProofRecord {
	data, err := s.cache.Get(key)
	if err != nil {
		return nil
	}
	r, err := decodeRecord(key, data)
	if err != nil || r.Expired(s.clock.Now()) {
		_ = s.cache.Delete(key)
		return nil
	}
	return r
}

func (s *CachedStore) remember(key string, r *ProofRecord) {
	if r == nil || !r.Status.Terminal() {
		return
	}
	if data, err := encodeRecord(r); err == nil {
		_ = s.cache.Set(key, data)
	}
}

// TryReserve 实现 Store
func (s *CachedStore) TryReserve(ctx context.Context, key string, pending *ProofRecord) (*ProofRecord, bool, error) {
	if r := s.cached(key); r != nil {
		return r, false, nil
	}
	existing, reserved, err := s.inner.TryReserve(ctx, key, pending)
	if err == nil {
		s.remember(key, existing)
	}
	return existing, reserved, err
}

// Complete 实现 Store
func (s *CachedStore) Complete(ctx context.Context, key string, record *ProofRecord) (bool, error) {
	ok, err := s.inner.Complete(ctx, key, record)
	if err == nil && ok {
		s.remember(key, record)
	}
	return ok, err
}

// Get 实现 Store
func (s *CachedStore) Get(ctx context.Context, key string) (*ProofRecord, error) {
	if r := s.cached(key); r != nil {
		return r, nil
	}
	r, err := s.inner.Get(ctx, key)
	if err == nil {
		s.remember(key, r)
	}
	return r, err
}

// Ping 实现 Store
func (s *CachedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close 实现 Store
func (s *CachedStore) Close() error {
	return errors.Join(s.cache.Close(), s.inner.Close())
}
