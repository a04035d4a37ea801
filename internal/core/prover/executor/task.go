package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// ============================================================================
// 证明作业任务定义
// ============================================================================
//
// 🎯 **设计目的**：
// 一个任务对应证明缓存中的一次预留。任务从入队到结束只有一个出口：
// 向该预留写入 succeeded 或 failed 终态记录。
//
// ⚠️ **注意**：
// - 任务不可取消、不重试；失败即写入 failed 记录，客户端可在过期后重新提交
// - Prove 可能 panic，由工作线程恢复并记为失败
//
// ============================================================================

// ProveFunc 生成阶段证明
type ProveFunc func(ctx context.Context) (*engine.Proof, error)

// Task 证明作业任务
type Task struct {
	// 任务ID（唯一标识）
	TaskID string

	// 证明缓存键
	Key string

	// 阶段
	Stage rollup.Stage

	// 本任务持有的 pending 预留
	Reservation *proofcache.ProofRecord

	// 证明生成函数
	Prove ProveFunc

	// 任务优先级（数字越大优先级越高）
	Priority int

	// 任务状态
	Status TaskStatus

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	// 错误信息（失败时填充）
	Error error
}

// TaskStatus 任务状态
type TaskStatus string

const (
	// TaskStatusPending 排队中
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning 运行中
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted 已完成
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed 失败
	TaskStatusFailed TaskStatus = "failed"
)

// NewTask 创建证明作业任务
func NewTask(key string, stage rollup.Stage, reservation *proofcache.ProofRecord, prove ProveFunc) *Task {
	return &Task{
		TaskID:      uuid.NewString(),
		Key:         key,
		Stage:       stage,
		Reservation: reservation,
		Prove:       prove,
		Priority:    stagePriority(stage),
		Status:      TaskStatusPending,
	}
}

// stagePriority 区块有效性证明是其余阶段的前驱，优先执行
func stagePriority(stage rollup.Stage) int {
	if stage == rollup.StageValidity {
		return 10
	}
	return 0
}

// MarkRunning 标记任务为运行中
func (t *Task) MarkRunning(now time.Time) {
	t.Status = TaskStatusRunning
	t.StartedAt = now
}

// MarkCompleted 标记任务为已完成
func (t *Task) MarkCompleted(now time.Time) {
	t.Status = TaskStatusCompleted
	t.CompletedAt = now
}

// MarkFailed 标记任务为失败
func (t *Task) MarkFailed(now time.Time, err error) {
	t.Status = TaskStatusFailed
	t.CompletedAt = now
	t.Error = err
}

// GetDuration 获取任务执行时长
func (t *Task) GetDuration() time.Duration {
	if t.StartedAt.IsZero() || t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// GetWaitTime 获取任务排队时长
func (t *Task) GetWaitTime() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return t.StartedAt.Sub(t.CreatedAt)
}
