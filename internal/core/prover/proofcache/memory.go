package proofcache

import (
	"context"
	"sync"
	"time"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
)

// MemoryStore 进程内证明缓存，用于开发与测试
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*ProofRecord
	keyPrefix string
	ttl       time.Duration
	clock     clock.Clock
	closed    bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存证明缓存
func NewMemoryStore(keyPrefix string, ttl time.Duration, clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*ProofRecord),
		keyPrefix: keyPrefix,
		ttl:       ttl,
		clock:     clk,
	}
}

// lookup 读取未过期记录，调用方持锁
func (s *MemoryStore) lookup(key string) *ProofRecord {
	r, ok := s.records[key]
	if !ok {
		return nil
	}
	if r.Expired(s.clock.Now()) {
		delete(s.records, key)
		return nil
	}
	return r
}

func (s *MemoryStore) put(key string, r *ProofRecord) {
	cp := *r
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = s.clock.Now().Add(s.ttl)
	}
	s.records[key] = &cp
}

// TryReserve 实现 Store
func (s *MemoryStore) TryReserve(ctx context.Context, key string, pending *ProofRecord) (*ProofRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, errClosed("reserve", key)
	}

	key = s.keyPrefix + key
	if existing := s.lookup(key); existing != nil {
		cp := *existing
		return &cp, false, nil
	}
	s.put(key, pending)
	return nil, true, nil
}

// Complete 实现 Store
func (s *MemoryStore) Complete(ctx context.Context, key string, record *ProofRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errClosed("complete", key)
	}

	key = s.keyPrefix + key
	if cur := s.lookup(key); cur != nil && !cur.holdsReservation(record.ReservationID) {
		return false, nil
	}
	s.put(key, record)
	return true, nil
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, key string) (*ProofRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed("get", key)
	}

	r := s.lookup(s.keyPrefix + key)
	if r == nil {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// Ping 实现 Store
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed("ping", "")
	}
	return nil
}

// Close 实现 Store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len 当前未过期记录数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.records {
		if s.lookup(key) != nil {
			n++
		}
	}
	return n
}
