// Package clock 提供基于系统时间的时钟实现
package clock

import (
	"time"

	clockiface "github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
)

type systemClock struct{}

// NewSystemClock 创建系统时钟
func NewSystemClock() clockiface.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }
