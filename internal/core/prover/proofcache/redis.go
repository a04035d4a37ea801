package proofcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	storeconfig "github.com/weisyn/rollup-prover/internal/config/store"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
)

// errKeyNotFound 键不存在
var errKeyNotFound = errors.New("key not found")

// redisClient Redis 客户端接口（用于依赖注入和测试）
//
// ⚠️ **可见性**：包内私有接口，生产实现为 goRedisClient，测试使用 mock。
type redisClient interface {
	// SetNXGet 键不存在时写入；返回写入前的值（键不存在时 set=true）
	SetNXGet(ctx context.Context, key string, value []byte, ttl time.Duration) (existing []byte, set bool, err error)
	// CompleteReservation 当前值为该预留的 pending 或键不存在时写入
	CompleteReservation(ctx context.Context, key, reservationID string, value []byte, ttl time.Duration) (bool, error)
	// Get 获取键对应的值；不存在时返回 errKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Ping 测试连接
	Ping(ctx context.Context) error
	// Close 关闭连接
	Close() error
}

// RedisStore Redis 版证明缓存
//
// 🎯 **设计理念**：
//   - Key 格式：{keyPrefix}{domain}/{subject}/{stage}/{requestId}
//   - Value 格式：JSON 序列化的 ProofRecord
//   - TTL：每次写入都带过期时间，记录的 expiresAt 与 Redis TTL 一致
//
// 🔒 **并发安全**：预留使用 SET NX GET，终态写入使用 Lua 比较并设置，
// 多进程共享同一 Redis 时仍保持单一终态。
type RedisStore struct {
	client    redisClient
	keyPrefix string
	ttl       time.Duration
	clock     clock.Clock
}

var _ Store = (*RedisStore)(nil)

// NewRedisStoreFromOptions 从配置创建 Redis 证明缓存
func NewRedisStoreFromOptions(options *storeconfig.StoreOptions, clk clock.Clock) (*RedisStore, error) {
	client, err := newGoRedisClient(options)
	if err != nil {
		return nil, proverr.WrapStoreError("connect", options.RedisAddr, err)
	}
	return NewRedisStore(client, options.KeyPrefix, options.ProofExpiration, clk)
}

// NewRedisStore 创建 Redis 证明缓存
func NewRedisStore(client redisClient, keyPrefix string, ttl time.Duration, clk clock.Clock) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("proof expiration must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, proverr.WrapStoreError("ping", "", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		clock:     clk,
	}, nil
}

// TryReserve 实现 Store
func (s *RedisStore) TryReserve(ctx context.Context, key string, pending *ProofRecord) (*ProofRecord, bool, error) {
	data, err := encodeRecord(pending)
	if err != nil {
		return nil, false, err
	}

	fullKey := s.keyPrefix + key
	existing, set, err := s.client.SetNXGet(ctx, fullKey, data, writeTTL(pending, s.clock.Now(), s.ttl))
	if err != nil {
		return nil, false, proverr.WrapStoreError("reserve", key, err)
	}
	if set {
		return nil, true, nil
	}
	r, err := decodeRecord(key, existing)
	if err != nil {
		return nil, false, err
	}
	return r, false, nil
}

// Complete 实现 Store
func (s *RedisStore) Complete(ctx context.Context, key string, record *ProofRecord) (bool, error) {
	data, err := encodeRecord(record)
	if err != nil {
		return false, err
	}
	ok, err := s.client.CompleteReservation(ctx, s.keyPrefix+key, record.ReservationID, data, writeTTL(record, s.clock.Now(), s.ttl))
	if err != nil {
		return false, proverr.WrapStoreError("complete", key, err)
	}
	return ok, nil
}

// Get 实现 Store
func (s *RedisStore) Get(ctx context.Context, key string) (*ProofRecord, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key)
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return nil, nil
		}
		return nil, proverr.WrapStoreError("get", key, err)
	}
	return decodeRecord(key, data)
}

// Ping 实现 Store
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return proverr.WrapStoreError("ping", "", err)
	}
	return nil
}

// Close 实现 Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
