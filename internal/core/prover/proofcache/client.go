package proofcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	storeconfig "github.com/weisyn/rollup-prover/internal/config/store"
)

// completeScript 终态写入：仅当键不存在，或仍为同一预留的 pending 记录时覆盖
var completeScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local rec = cjson.decode(cur)
  if rec['status'] ~= 'pending' or rec['reservationId'] ~= ARGV[1] then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// goRedisClient go-redis 客户端实现
//
// 🔒 **并发安全**：go-redis 客户端本身是并发安全的
type goRedisClient struct {
	client *redis.Client
}

var _ redisClient = (*goRedisClient)(nil)

// newGoRedisClient 创建 go-redis 客户端并测试连接
func newGoRedisClient(options *storeconfig.StoreOptions) (redisClient, error) {
	if options.RedisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         options.RedisAddr,
		Password:     options.RedisPassword,
		DB:           options.RedisDB,
		PoolSize:     options.PoolSize,
		MinIdleConns: options.MinIdleConns,
		DialTimeout:  options.DialTimeout,
		ReadTimeout:  options.ReadTimeout,
		WriteTimeout: options.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &goRedisClient{client: client}, nil
}

// SetNXGet SET key value NX GET PX ttl（Redis 7+）
func (c *goRedisClient) SetNXGet(ctx context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	old, err := c.client.SetArgs(ctx, key, value, redis.SetArgs{Mode: "NX", Get: true, TTL: ttl}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(old), false, nil
}

// CompleteReservation 执行终态写入脚本
func (c *goRedisClient) CompleteReservation(ctx context.Context, key, reservationID string, value []byte, ttl time.Duration) (bool, error) {
	n, err := completeScript.Run(ctx, c.client, []string{key}, reservationID, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get 获取键对应的值
func (c *goRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errKeyNotFound
		}
		return nil, err
	}
	return b, nil
}

// Ping 测试连接
func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接
func (c *goRedisClient) Close() error {
	return c.client.Close()
}
