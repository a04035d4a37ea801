// Package executor 异步证明作业执行器
//
// 🎯 **职责**：
//   - Schedule 立即返回，证明在工作线程中生成
//   - 每个被接受或被拒绝的任务都恰好向其预留写入一次终态记录
//   - 证明成功写 succeeded；返回错误、panic、入队失败、停机时仍在排队都写 failed
//
// 执行器与请求方之间只通过证明缓存交互，不提供取消接口。
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	proverconfig "github.com/weisyn/rollup-prover/internal/config/prover"
	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// persistTimeout 终态记录写入超时
const persistTimeout = 10 * time.Second

// Encoder 证明线上编码
type Encoder interface {
	Encode(p *engine.Proof) (string, error)
}

// Executor 证明作业执行器
type Executor struct {
	store  proofcache.Store
	ttl    time.Duration
	queue  *TaskQueue
	pool   *WorkerPool
	events event.EventBus
	clock  clock.Clock
	logger log.Logger

	scheduled atomic.Int64
	rejected  atomic.Int64
	persisted atomic.Int64
	lost      atomic.Int64
}

// New 创建执行器；ttl 为终态记录的生存时间，events 可为 nil
func New(
	options *proverconfig.ProverOptions,
	ttl time.Duration,
	store proofcache.Store,
	encoder Encoder,
	events event.EventBus,
	logger log.Logger,
	clk clock.Clock,
) (*Executor, error) {
	if options == nil {
		return nil, fmt.Errorf("prover options cannot be nil")
	}
	if store == nil || encoder == nil {
		return nil, fmt.Errorf("executor requires a store and an encoder")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("proof expiration must be positive")
	}

	e := &Executor{
		store:  store,
		ttl:    ttl,
		queue:  NewTaskQueue(options.MaxQueuedJobs, logger),
		events: events,
		clock:  clk,
		logger: logger,
	}
	e.pool = NewWorkerPool(e.queue, encoder, options.MaxConcurrentProofs, options.ProofTimeout,
		e.onStart, e.onFinish, clk, logger)
	return e, nil
}

// Start 启动工作线程
func (e *Executor) Start() {
	e.pool.Start()
}

// Stop 停止接收任务，排队任务写入失败记录，并等待执行中的任务结束
func (e *Executor) Stop(ctx context.Context) error {
	e.queue.Close()

	drained := e.queue.Drain()
	for _, task := range drained {
		e.finish(task, "", nil, proverr.Wrap(proverr.ErrJobRejected, "executor shutting down"), true)
	}
	if len(drained) > 0 {
		e.logger.Warnf("停机时丢弃排队任务: count=%d", len(drained))
	}
	return e.pool.Stop(ctx)
}

// Schedule 提交任务并立即返回
//
// 入队失败时任务的预留已写入 failed 记录，返回的错误包装 ErrJobRejected。
func (e *Executor) Schedule(task *Task) error {
	if task == nil || task.Reservation == nil || task.Prove == nil {
		return fmt.Errorf("invalid task: reservation and prove func are required")
	}
	task.CreatedAt = e.clock.Now()

	if err := e.queue.Enqueue(task); err != nil {
		rejectErr := proverr.Wrap(proverr.ErrJobRejected, "%v", err)
		e.rejected.Add(1)
		e.finish(task, "", nil, rejectErr, false)
		return rejectErr
	}
	e.scheduled.Add(1)
	e.publish(EventJobScheduled, newJobEvent(task))
	return nil
}

func (e *Executor) onStart(task *Task) {
	e.publish(EventJobStarted, newJobEvent(task))
}

func (e *Executor) onFinish(task *Task, encoded string, publicInputs []byte, err error) {
	e.finish(task, encoded, publicInputs, err, false)
}

// finish 写入终态记录并发布事件
func (e *Executor) finish(task *Task, encoded string, publicInputs []byte, err error, queued bool) {
	now := e.clock.Now()

	var record *proofcache.ProofRecord
	if err != nil {
		task.MarkFailed(now, err)
		record = task.Reservation.Fail(now, e.ttl, err.Error())
	} else {
		task.MarkCompleted(now)
		record = task.Reservation.Succeed(now, e.ttl, encoded, json.RawMessage(publicInputs))
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	written, werr := e.store.Complete(ctx, task.Key, record)
	switch {
	case werr != nil:
		// 预留将在过期后释放
		e.lost.Add(1)
		e.logger.Errorf("写入终态记录失败: key=%s, status=%s, error=%v", task.Key, record.Status, werr)
	case !written:
		e.logger.Warnf("预留已被替换，终态记录未写入: key=%s, reservation=%s", task.Key, record.ReservationID)
	default:
		e.persisted.Add(1)
	}

	ev := newJobEvent(task)
	ev.Queued = queued
	ev.Persisted = werr == nil && written
	ev.WriteErr = werr != nil
	e.publish(EventJobFinished, ev)
}

func (e *Executor) publish(topic event.EventType, ev JobEvent) {
	if e.events != nil {
		e.events.Publish(topic, ev)
	}
}

// QueueLen 排队任务数
func (e *Executor) QueueLen() int {
	return e.queue.Len()
}

// GetStats 获取统计信息
func (e *Executor) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"scheduled": e.scheduled.Load(),
		"rejected":  e.rejected.Load(),
		"persisted": e.persisted.Load(),
		"lost":      e.lost.Load(),
		"queue":     e.queue.GetStats(),
		"workers":   e.pool.GetStats(),
	}
}
