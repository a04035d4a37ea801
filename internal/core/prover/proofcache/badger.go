package proofcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// maxConflictRetries 事务冲突重试次数
const maxConflictRetries = 8

// BadgerStore 单节点持久化证明缓存
//
// 预留与终态写入都在一个读写事务内完成，Badger 的乐观事务冲突检测
// 保证并发预留同一键时只有一个成功提交。
type BadgerStore struct {
	db        *badgerdb.DB
	keyPrefix string
	ttl       time.Duration
	clock     clock.Clock
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore 打开 Badger 证明缓存；path 为空时使用内存模式
func NewBadgerStore(path, keyPrefix string, ttl time.Duration, logger log.Logger, clk clock.Clock) (*BadgerStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("proof expiration must be positive")
	}

	var opts badgerdb.Options
	if path == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badgerdb.DefaultOptions(path)
	}
	opts.Logger = newBadgerLogger(logger)
	opts.BlockCacheSize = 32 << 20
	opts.IndexCacheSize = 32 << 20
	opts.NumMemtables = 2
	opts.NumCompactors = 2

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, proverr.WrapStoreError("open", path, err)
	}
	return &BadgerStore{db: db, keyPrefix: keyPrefix, ttl: ttl, clock: clk}, nil
}

// update 执行读写事务，冲突时重试
func (s *BadgerStore) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

// load 在事务中读取未过期记录
func (s *BadgerStore) load(txn *badgerdb.Txn, key string) (*ProofRecord, error) {
	item, err := txn.Get([]byte(s.keyPrefix + key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	r, err := decodeRecord(key, data)
	if err != nil {
		return nil, err
	}
	if r.Expired(s.clock.Now()) {
		return nil, nil
	}
	return r, nil
}

func (s *BadgerStore) store(txn *badgerdb.Txn, key string, r *ProofRecord) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	e := badgerdb.NewEntry([]byte(s.keyPrefix+key), data).WithTTL(writeTTL(r, s.clock.Now(), s.ttl))
	return txn.SetEntry(e)
}

// TryReserve 实现 Store
func (s *BadgerStore) TryReserve(ctx context.Context, key string, pending *ProofRecord) (*ProofRecord, bool, error) {
	var (
		existing *ProofRecord
		reserved bool
	)
	err := s.update(func(txn *badgerdb.Txn) error {
		existing, reserved = nil, false
		cur, err := s.load(txn, key)
		if err != nil {
			return err
		}
		if cur != nil {
			existing = cur
			return nil
		}
		reserved = true
		return s.store(txn, key, pending)
	})
	if err != nil {
		return nil, false, s.wrap("reserve", key, err)
	}
	return existing, reserved, nil
}

// Complete 实现 Store
func (s *BadgerStore) Complete(ctx context.Context, key string, record *ProofRecord) (bool, error) {
	var written bool
	err := s.update(func(txn *badgerdb.Txn) error {
		written = false
		cur, err := s.load(txn, key)
		if err != nil {
			return err
		}
		if cur != nil && !cur.holdsReservation(record.ReservationID) {
			return nil
		}
		written = true
		return s.store(txn, key, record)
	})
	if err != nil {
		return false, s.wrap("complete", key, err)
	}
	return written, nil
}

// Get 实现 Store
func (s *BadgerStore) Get(ctx context.Context, key string) (*ProofRecord, error) {
	var r *ProofRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		r, err = s.load(txn, key)
		return err
	})
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	return r, nil
}

// Ping 实现 Store
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errClosed("ping", "")
	}
	return nil
}

// Close 实现 Store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// wrap 损坏记录保持原分类，其余归为存储不可用
func (s *BadgerStore) wrap(op, key string, err error) error {
	if errors.Is(err, proverr.ErrCorruptRecord) {
		return err
	}
	return proverr.WrapStoreError(op, key, err)
}

// badgerLogger BadgerDB 日志适配器
type badgerLogger struct {
	logger log.Logger
}

func newBadgerLogger(logger log.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}
