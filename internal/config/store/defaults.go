package store

import "time"

// 证明缓存默认值
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendMemory = "memory"

	defaultBackend   = BackendRedis
	defaultRedisAddr = "localhost:6379"
	defaultRedisDB   = 0
	defaultKeyPrefix = ""

	// defaultProofExpiration 证明结果保留窗口
	defaultProofExpiration = 24 * time.Hour

	defaultBadgerPath = "./data/proofs"

	defaultPoolSize     = 32
	defaultMinIdleConns = 4
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second

	defaultReadCache       = true
	defaultReadCacheWindow = 10 * time.Minute
)
