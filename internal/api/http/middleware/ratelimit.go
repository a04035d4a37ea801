package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weisyn/rollup-prover/internal/api/http/types"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
)

// maxIdleBuckets 超过该数量时回收已补满的令牌桶
const maxIdleBuckets = 4096

// RateLimit 按客户端IP限流
//
// 提交（POST）与查询（GET/HEAD）各用一个令牌桶：提交会占用证明工作线程，
// 查询只读缓存，两者额度分开配置。额度 <= 0 表示不限流。
type RateLimit struct {
	logger *zap.Logger
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[bucketKey]*bucket

	readLimit   int
	submitLimit int
}

type bucketKey struct {
	client string
	submit bool
}

// bucket 每整秒补满 limit 个令牌
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimit 创建限流中间件
func NewRateLimit(logger *zap.Logger, clk clock.Clock, readLimit, submitLimit int) *RateLimit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimit{
		logger:      logger,
		clock:       clk,
		buckets:     make(map[bucketKey]*bucket),
		readLimit:   readLimit,
		submitLimit: submitLimit,
	}
}

// Middleware 返回Gin中间件
func (m *RateLimit) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		submit := c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead
		limit := m.readLimit
		if submit {
			limit = m.submitLimit
		}
		if limit <= 0 || m.take(bucketKey{client: c.ClientIP(), submit: submit}, limit) {
			c.Next()
			return
		}

		m.logger.Debug("rate limited", zap.String("client", c.ClientIP()), zap.Bool("submit", submit))
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			types.NewErrorResponse(http.StatusTooManyRequests, types.ErrRateLimitExceeded, "request rate limit exceeded").
				WithRequestID(GetRequestID(c)))
	}
}

// take 取一个令牌
func (m *RateLimit) take(key bucketKey, limit int) bool {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		if len(m.buckets) >= maxIdleBuckets {
			m.evictIdle(now)
		}
		b = &bucket{tokens: limit, lastRefill: now}
		m.buckets[key] = b
	}
	if elapsed := int(now.Sub(b.lastRefill) / time.Second); elapsed > 0 {
		b.tokens = min(limit, b.tokens+elapsed*limit)
		b.lastRefill = now
	}
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle 超过一秒未用的桶已补满，删除后重建等价
func (m *RateLimit) evictIdle(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastRefill) >= time.Second {
			delete(m.buckets, key)
		}
	}
}

// size 当前令牌桶数量
func (m *RateLimit) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
