// Package testutil 提供证明网关各模块测试共用的Mock与辅助函数
package testutil

import (
	"sync"
	"time"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
	"go.uber.org/zap"
)

var (
	_ log.Logger  = (*MockLogger)(nil)
	_ log.Logger  = (*BehavioralMockLogger)(nil)
	_ clock.Clock = (*MockClock)(nil)
)

// MockLogger 最小日志Mock实现，不记录任何内容
type MockLogger struct{}

func (m *MockLogger) Debug(msg string)                          {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(msg string)                           {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(msg string)                           {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(msg string)                          {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(msg string)                          {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) With(args ...interface{}) log.Logger       { return m }
func (m *MockLogger) Sync() error                               { return nil }
func (m *MockLogger) GetZapLogger() *zap.Logger                 { return zap.NewNop() }

// BehavioralMockLogger 记录所有日志调用，用于验证日志行为
type BehavioralMockLogger struct {
	logs  []string
	mutex sync.Mutex
}

func (m *BehavioralMockLogger) record(prefix, msg string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.logs = append(m.logs, prefix+msg)
}

func (m *BehavioralMockLogger) Debug(msg string) { m.record("DEBUG: ", msg) }
func (m *BehavioralMockLogger) Info(msg string)  { m.record("INFO: ", msg) }
func (m *BehavioralMockLogger) Warn(msg string)  { m.record("WARN: ", msg) }
func (m *BehavioralMockLogger) Error(msg string) { m.record("ERROR: ", msg) }
func (m *BehavioralMockLogger) Fatal(msg string) { m.record("FATAL: ", msg) }

func (m *BehavioralMockLogger) Debugf(format string, args ...interface{}) {
	m.record("DEBUG: ", format)
}

func (m *BehavioralMockLogger) Infof(format string, args ...interface{}) {
	m.record("INFO: ", format)
}

func (m *BehavioralMockLogger) Warnf(format string, args ...interface{}) {
	m.record("WARN: ", format)
}

func (m *BehavioralMockLogger) Errorf(format string, args ...interface{}) {
	m.record("ERROR: ", format)
}

func (m *BehavioralMockLogger) Fatalf(format string, args ...interface{}) {
	m.record("FATAL: ", format)
}

func (m *BehavioralMockLogger) With(args ...interface{}) log.Logger { return m }
func (m *BehavioralMockLogger) Sync() error                         { return nil }
func (m *BehavioralMockLogger) GetZapLogger() *zap.Logger           { return zap.NewNop() }

// GetLogs 返回已记录的日志副本
func (m *BehavioralMockLogger) GetLogs() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]string, len(m.logs))
	copy(out, m.logs)
	return out
}

// MockClock 可推进的Mock时钟
type MockClock struct {
	now   time.Time
	mutex sync.Mutex
}

// NewMockClock 创建Mock时钟
func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

// Now 返回当前时间
func (m *MockClock) Now() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.now
}

// Since 返回自指定时间以来的持续时间
func (m *MockClock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Advance 推进时间
func (m *MockClock) Advance(d time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.now = m.now.Add(d)
}
