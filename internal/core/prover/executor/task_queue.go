package executor

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// ============================================================================
// 证明作业任务队列
// ============================================================================
//
// 优先级队列 + 有界容量。入队成功即通知等待中的工作线程；
// 队列关闭后拒绝入队，剩余任务由 Drain 取出并写入失败记录。
//
// ============================================================================

// TaskQueue 证明作业任务队列
type TaskQueue struct {
	// 优先级队列
	queue *priorityQueue

	// 任务索引（TaskID -> Task）
	tasks map[string]*Task

	// 容量上限，<= 0 表示不限
	capacity int

	// 入队通知
	notifyCh chan struct{}

	closed bool
	mutex  sync.Mutex
	logger log.Logger
}

// NewTaskQueue 创建任务队列
func NewTaskQueue(capacity int, logger log.Logger) *TaskQueue {
	return &TaskQueue{
		queue:    newPriorityQueue(),
		tasks:    make(map[string]*Task),
		capacity: capacity,
		notifyCh: make(chan struct{}, 1),
		logger:   logger,
	}
}

// Enqueue 入队任务
func (q *TaskQueue) Enqueue(task *Task) error {
	if task == nil {
		return fmt.Errorf("任务不能为空")
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return fmt.Errorf("任务队列已关闭")
	}
	if _, exists := q.tasks[task.TaskID]; exists {
		return fmt.Errorf("任务已存在: %s", task.TaskID)
	}
	if q.capacity > 0 && q.queue.Len() >= q.capacity {
		return fmt.Errorf("任务队列已满: capacity=%d", q.capacity)
	}

	heap.Push(q.queue, task)
	q.tasks[task.TaskID] = task

	select {
	case q.notifyCh <- struct{}{}:
	default:
	}

	if q.logger != nil {
		q.logger.Debugf("任务已入队: taskID=%s, key=%s, priority=%d", task.TaskID, task.Key, task.Priority)
	}
	return nil
}

// Dequeue 出队优先级最高的任务，队列为空返回 nil
func (q *TaskQueue) Dequeue() *Task {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.queue.Len() == 0 {
		return nil
	}
	task := heap.Pop(q.queue).(*Task)
	delete(q.tasks, task.TaskID)

	// 仍有任务时继续唤醒其他工作线程
	if q.queue.Len() > 0 {
		select {
		case q.notifyCh <- struct{}{}:
		default:
		}
	}
	return task
}

// Close 关闭队列，之后入队失败
func (q *TaskQueue) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.closed = true
}

// Drain 取出全部剩余任务
func (q *TaskQueue) Drain() []*Task {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	out := make([]*Task, 0, q.queue.Len())
	for q.queue.Len() > 0 {
		task := heap.Pop(q.queue).(*Task)
		delete(q.tasks, task.TaskID)
		out = append(out, task)
	}
	return out
}

// Len 排队任务数
func (q *TaskQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.queue.Len()
}

// GetNotifyChannel 入队通知通道
func (q *TaskQueue) GetNotifyChannel() <-chan struct{} {
	return q.notifyCh
}

// GetStats 获取统计信息
func (q *TaskQueue) GetStats() map[string]interface{} {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	stageCounts := make(map[string]int)
	for _, task := range q.tasks {
		stageCounts[string(task.Stage)]++
	}
	return map[string]interface{}{
		"queue_size":   q.queue.Len(),
		"capacity":     q.capacity,
		"closed":       q.closed,
		"stage_counts": stageCounts,
	}
}

// ============================================================================
// 优先级队列实现（最大堆，同优先级先进先出）
// ============================================================================

type priorityQueue []*Task

func newPriorityQueue() *priorityQueue {
	pq := make(priorityQueue, 0)
	return &pq
}

func (pq priorityQueue) Len() int {
	return len(pq)
}

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority > pq[j].Priority
	}
	return pq[i].CreatedAt.Before(pq[j].CreatedAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*Task))
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return task
}
