// Package clock provides the time source interface.
package clock

import "time"

// Clock 提供统一的时间源接口
//
// 证明缓存的过期判断、任务耗时统计都经由该接口取时间，
// 测试中可替换为可推进的Mock时钟。
type Clock interface {
	// Now 获取当前时间
	Now() time.Time

	// Since 计算从指定时间到现在的持续时间
	Since(t time.Time) time.Duration
}
