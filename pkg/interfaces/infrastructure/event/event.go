// Package event 定义进程内事件总线接口
//
// 作业执行器通过事件总线发布作业生命周期事件，指标与日志订阅者各自订阅，
// 执行器本身不直接依赖订阅方。
package event

// EventType 事件类型
type EventType string

// EventBus 事件总线接口
type EventBus interface {
	// Subscribe 订阅事件，处理函数在发布方 goroutine 中同步执行
	Subscribe(eventType EventType, handler interface{}) error
	// Publish 发布事件；无订阅者时丢弃
	Publish(eventType EventType, args ...interface{})
}
