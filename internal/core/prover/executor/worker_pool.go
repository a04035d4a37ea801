package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ============================================================================
// 证明作业工作线程池
// ============================================================================
//
// 固定数量的工作线程从任务队列取任务执行。证明计算是 CPU 密集型，
// 线程数即最大并发证明数。
//
// ⚠️ **注意**：
// - 任何错误或 panic 都交给回调写入失败记录，工作线程本身不会退出
// - Stop 等待正在执行的任务结束，不中断证明计算
//
// ============================================================================

// pollInterval 队列为空时的兜底轮询间隔
const pollInterval = 100 * time.Millisecond

// ProofCallback 任务结束回调：成功时 err 为 nil
type ProofCallback func(task *Task, encoded string, publicInputs []byte, err error)

// StartCallback 任务开始回调
type StartCallback func(task *Task)

// Worker 证明作业工作线程
type Worker struct {
	workerID  int
	taskQueue *TaskQueue
	encoder   Encoder
	timeout   time.Duration

	onStart  StartCallback
	callback ProofCallback

	stopCh chan struct{}
	doneCh chan struct{}

	clock  clock.Clock
	logger log.Logger

	// 统计信息
	processedCount atomic.Int64
	successCount   atomic.Int64
	errorCount     atomic.Int64
	panicCount     atomic.Int64
	busy           atomic.Bool
}

// NewWorker 创建工作线程
func NewWorker(workerID int, pool *WorkerPool) *Worker {
	return &Worker{
		workerID:  workerID,
		taskQueue: pool.taskQueue,
		encoder:   pool.encoder,
		timeout:   pool.timeout,
		onStart:   pool.onStart,
		callback:  pool.callback,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		clock:     pool.clock,
		logger:    pool.logger,
	}
}

// Start 启动工作线程
func (w *Worker) Start() {
	go w.run()
}

// run 工作线程主循环
func (w *Worker) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		task := w.taskQueue.Dequeue()
		if task == nil {
			select {
			case <-w.stopCh:
				return
			case <-w.taskQueue.GetNotifyChannel():
			case <-time.After(pollInterval):
			}
			continue
		}
		w.processTask(task)
	}
}

// processTask 处理任务
func (w *Worker) processTask(task *Task) {
	w.busy.Store(true)
	defer w.busy.Store(false)

	task.MarkRunning(w.clock.Now())
	if w.onStart != nil {
		w.onStart(task)
	}

	encoded, publicInputs, err := w.execute(task)

	w.processedCount.Add(1)
	if err != nil {
		w.errorCount.Add(1)
	} else {
		w.successCount.Add(1)
	}
	if w.callback != nil {
		w.callback(task, encoded, publicInputs, err)
	}
}

// execute 生成并编码证明，panic 转为错误
func (w *Worker) execute(task *Task) (encoded string, publicInputs []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.panicCount.Add(1)
			err = fmt.Errorf("%w: stage=%s: %v", proverr.ErrJobPanicked, task.Stage, r)
			if w.logger != nil {
				w.logger.Errorf("❌ 工作线程%d任务panic: taskID=%s, key=%s, panic=%v\n%s",
					w.workerID, task.TaskID, task.Key, r, debug.Stack())
			}
		}
	}()

	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	proof, err := task.Prove(ctx)
	if err != nil {
		return "", nil, err
	}
	if proof == nil {
		return "", nil, proverr.Wrap(proverr.ErrProofGeneration, "stage=%s: empty proof", task.Stage)
	}
	encoded, err = w.encoder.Encode(proof)
	if err != nil {
		return "", nil, proverr.WrapProvingError(task.Stage.String(), fmt.Errorf("encode: %w", err))
	}
	return encoded, proof.PublicInputs, nil
}

// signal 通知工作线程退出
func (w *Worker) signal() {
	close(w.stopCh)
}

// GetStats 获取统计信息
func (w *Worker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_id":       w.workerID,
		"busy":            w.busy.Load(),
		"processed_count": w.processedCount.Load(),
		"success_count":   w.successCount.Load(),
		"error_count":     w.errorCount.Load(),
		"panic_count":     w.panicCount.Load(),
	}
}

// ============================================================================
// 工作线程池
// ============================================================================

// WorkerPool 证明作业工作线程池
type WorkerPool struct {
	workers   []*Worker
	taskQueue *TaskQueue
	encoder   Encoder
	timeout   time.Duration

	onStart  StartCallback
	callback ProofCallback

	workerCount int
	clock       clock.Clock
	logger      log.Logger

	started    bool
	stopped    bool
	startMutex sync.Mutex
}

// NewWorkerPool 创建工作线程池
func NewWorkerPool(
	taskQueue *TaskQueue,
	encoder Encoder,
	workerCount int,
	timeout time.Duration,
	onStart StartCallback,
	callback ProofCallback,
	clk clock.Clock,
	logger log.Logger,
) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		taskQueue:   taskQueue,
		encoder:     encoder,
		timeout:     timeout,
		onStart:     onStart,
		callback:    callback,
		workerCount: workerCount,
		clock:       clk,
		logger:      logger,
	}
}

// Start 启动工作线程池
func (p *WorkerPool) Start() {
	p.startMutex.Lock()
	defer p.startMutex.Unlock()

	if p.started || p.stopped {
		return
	}
	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		worker := NewWorker(i, p)
		p.workers[i] = worker
		worker.Start()
	}
	p.started = true

	if p.logger != nil {
		p.logger.Infof("✅ 证明工作线程池已启动: workerCount=%d", p.workerCount)
	}
}

// Stop 通知全部工作线程退出，并等待正在执行的任务结束或 ctx 到期
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.startMutex.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.startMutex.Unlock()
		return nil
	}
	p.stopped = true
	workers := p.workers
	p.startMutex.Unlock()

	for _, worker := range workers {
		worker.signal()
	}
	for _, worker := range workers {
		select {
		case <-worker.doneCh:
		case <-ctx.Done():
			return fmt.Errorf("等待工作线程退出超时: %w", ctx.Err())
		}
	}

	if p.logger != nil {
		p.logger.Infof("✅ 证明工作线程池已停止")
	}
	return nil
}

// GetStats 获取统计信息
func (p *WorkerPool) GetStats() map[string]interface{} {
	p.startMutex.Lock()
	workers := p.workers
	p.startMutex.Unlock()

	var totalProcessed, totalSuccess, totalErrors, totalPanics int64
	busy := 0
	for _, worker := range workers {
		totalProcessed += worker.processedCount.Load()
		totalSuccess += worker.successCount.Load()
		totalErrors += worker.errorCount.Load()
		totalPanics += worker.panicCount.Load()
		if worker.busy.Load() {
			busy++
		}
	}
	return map[string]interface{}{
		"worker_count":    p.workerCount,
		"busy_workers":    busy,
		"total_processed": totalProcessed,
		"total_success":   totalSuccess,
		"total_errors":    totalErrors,
		"total_panics":    totalPanics,
	}
}
