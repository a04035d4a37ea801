// 基于asaskevich/EventBus的事件总线实现

package event

import (
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/event"
)

// EventBus 作业生命周期事件总线
//
// 订阅只在启动装配时发生，之后只有发布；处理函数同步执行，
// 因此指标与日志在 finished 事件发布返回时已更新。
type EventBus struct {
	bus evbus.Bus

	published atomic.Uint64
	dropped   atomic.Uint64
}

var _ event.EventBus = (*EventBus)(nil)

// New 创建事件总线
func New() *EventBus {
	return &EventBus{bus: evbus.New()}
}

// Subscribe 实现订阅
func (eb *EventBus) Subscribe(eventType event.EventType, handler interface{}) error {
	return eb.bus.Subscribe(string(eventType), handler)
}

// Publish 实现发布；关闭指标与日志订阅时事件被计为丢弃
func (eb *EventBus) Publish(eventType event.EventType, args ...interface{}) {
	eb.published.Add(1)
	if !eb.bus.HasCallback(string(eventType)) {
		eb.dropped.Add(1)
		return
	}
	eb.bus.Publish(string(eventType), args...)
}

// Counts 已发布与因无订阅者而丢弃的事件数
func (eb *EventBus) Counts() (published, dropped uint64) {
	return eb.published.Load(), eb.dropped.Load()
}
