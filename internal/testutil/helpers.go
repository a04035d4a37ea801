package testutil

import (
	"time"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// NewTestLogger 创建测试用的Logger
func NewTestLogger() log.Logger {
	return &MockLogger{}
}

// NewTestBehavioralLogger 创建行为Logger（记录调用）
func NewTestBehavioralLogger() *BehavioralMockLogger {
	return &BehavioralMockLogger{logs: make([]string, 0)}
}

// NewTestTime 创建测试用的时间点
func NewTestTime() time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

// NewTestClock 创建测试用的时钟
func NewTestClock() *MockClock {
	return NewMockClock(NewTestTime())
}
