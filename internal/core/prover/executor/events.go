package executor

import (
	"time"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// 作业生命周期事件
const (
	EventJobScheduled event.EventType = "prover.job.scheduled"
	EventJobStarted   event.EventType = "prover.job.started"
	EventJobFinished  event.EventType = "prover.job.finished"
)

// JobEvent 作业事件负载
type JobEvent struct {
	TaskID string
	Key    string
	Stage  string
	Status TaskStatus

	// 排队与执行耗时，仅 finished 事件填充
	Wait     time.Duration
	Duration time.Duration

	// Ran 任务是否被工作线程执行过；为 false 表示在入队或停机时被拒绝
	Ran bool
	// Queued 任务是否曾在队列中
	Queued bool
	// Persisted 终态记录是否写入
	Persisted bool
	// WriteErr 写入终态记录时存储报错；预留已被替换而未写入时为 false
	WriteErr bool
	Error    string
}

func newJobEvent(task *Task) JobEvent {
	ev := JobEvent{
		TaskID:   task.TaskID,
		Key:      task.Key,
		Stage:    task.Stage.String(),
		Status:   task.Status,
		Wait:     task.GetWaitTime(),
		Duration: task.GetDuration(),
		Ran:      !task.StartedAt.IsZero(),
	}
	if task.Error != nil {
		ev.Error = task.Error.Error()
	}
	return ev
}

// SubscribeLogger 将作业事件写入日志
func SubscribeLogger(bus event.EventBus, logger log.Logger) error {
	if err := bus.Subscribe(EventJobStarted, func(ev JobEvent) {
		logger.Debugf("证明作业开始: taskID=%s, key=%s", ev.TaskID, ev.Key)
	}); err != nil {
		return err
	}
	return bus.Subscribe(EventJobFinished, func(ev JobEvent) {
		switch {
		case ev.Status == TaskStatusCompleted:
			logger.Infof("✅ 证明作业完成: key=%s, stage=%s, wait=%s, duration=%s", ev.Key, ev.Stage, ev.Wait, ev.Duration)
		case ev.WriteErr:
			logger.Errorf("❌ 证明作业失败且终态未写入: key=%s, stage=%s, error=%s", ev.Key, ev.Stage, ev.Error)
		default:
			logger.Warnf("证明作业失败: key=%s, stage=%s, error=%s", ev.Key, ev.Stage, ev.Error)
		}
	})
}

// SubscribeMetrics 将作业事件汇入指标
func SubscribeMetrics(bus event.EventBus, m *Metrics) error {
	if err := bus.Subscribe(EventJobScheduled, m.onScheduled); err != nil {
		return err
	}
	if err := bus.Subscribe(EventJobStarted, m.onStarted); err != nil {
		return err
	}
	return bus.Subscribe(EventJobFinished, m.onFinished)
}
