package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proverconfig "github.com/weisyn/rollup-prover/internal/config/prover"
	eventbus "github.com/weisyn/rollup-prover/internal/core/infrastructure/event"
	"github.com/weisyn/rollup-prover/internal/core/prover/engine"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/testutil"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

const testTTL = time.Hour

// fakeEncoder 不依赖电路密钥的编码器
type fakeEncoder struct {
	fail bool
}

func (f fakeEncoder) Encode(p *engine.Proof) (string, error) {
	if f.fail {
		return "", errors.New("encoder broken")
	}
	return "enc:" + p.Stage.String(), nil
}

type fixture struct {
	t     *testing.T
	exec  *Executor
	store *proofcache.MemoryStore
	clock *testutil.MockClock
}

func newFixture(t *testing.T, options *proverconfig.ProverOptions, enc Encoder) *fixture {
	t.Helper()
	if options == nil {
		options = &proverconfig.ProverOptions{MaxConcurrentProofs: 2, MaxQueuedJobs: 8, ProofTimeout: time.Minute}
	}
	if enc == nil {
		enc = fakeEncoder{}
	}
	clk := testutil.NewTestClock()
	store := proofcache.NewMemoryStore("", testTTL, clk)
	exec, err := New(options, testTTL, store, enc, nil, testutil.NewTestLogger(), clk)
	require.NoError(t, err)
	return &fixture{t: t, exec: exec, store: store, clock: clk}
}

// reserve 预留键并构造任务
func (f *fixture) reserve(key string, prove ProveFunc) *Task {
	f.t.Helper()
	pending := proofcache.NewPending(f.clock.Now(), testTTL)
	_, reserved, err := f.store.TryReserve(context.Background(), key, pending)
	require.NoError(f.t, err)
	require.True(f.t, reserved)
	return NewTask(key, rollup.StageDeposit, pending, prove)
}

// await 等待键出现终态记录
func (f *fixture) await(key string) *proofcache.ProofRecord {
	f.t.Helper()
	var rec *proofcache.ProofRecord
	require.Eventually(f.t, func() bool {
		r, err := f.store.Get(context.Background(), key)
		require.NoError(f.t, err)
		if r != nil && r.Status.Terminal() {
			rec = r
			return true
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return rec
}

func proofOf(pis string) ProveFunc {
	return func(ctx context.Context) (*engine.Proof, error) {
		return &engine.Proof{Stage: rollup.StageDeposit, PublicInputs: []byte(pis)}, nil
	}
}

func TestNewValidation(t *testing.T) {
	clk := testutil.NewTestClock()
	store := proofcache.NewMemoryStore("", testTTL, clk)
	opts := &proverconfig.ProverOptions{MaxConcurrentProofs: 1}

	_, err := New(nil, testTTL, store, fakeEncoder{}, nil, testutil.NewTestLogger(), clk)
	assert.Error(t, err)
	_, err = New(opts, 0, store, fakeEncoder{}, nil, testutil.NewTestLogger(), clk)
	assert.Error(t, err)
	_, err = New(opts, testTTL, nil, fakeEncoder{}, nil, testutil.NewTestLogger(), clk)
	assert.Error(t, err)
}

func TestScheduleWritesSucceededRecord(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.exec.Start()
	defer f.exec.Stop(context.Background())

	task := f.reserve("k", proofOf(`{"amount":"5"}`))
	require.NoError(t, f.exec.Schedule(task))

	rec := f.await("k")
	assert.Equal(t, proofcache.StatusSucceeded, rec.Status)
	assert.Equal(t, "enc:deposit", rec.Proof)
	assert.JSONEq(t, `{"amount":"5"}`, string(rec.PublicInputs))
	assert.Equal(t, task.Reservation.ReservationID, rec.ReservationID)
	assert.Empty(t, rec.ErrorMessage)
}

func TestProveErrorWritesFailedRecord(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.exec.Start()
	defer f.exec.Stop(context.Background())

	require.NoError(t, f.exec.Schedule(f.reserve("k", func(ctx context.Context) (*engine.Proof, error) {
		return nil, proverr.WrapProvingError("deposit", errors.New("constraint not satisfied"))
	})))

	rec := f.await("k")
	assert.Equal(t, proofcache.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "constraint not satisfied")
	assert.Empty(t, rec.Proof)
}

func TestPanicWritesFailedRecord(t *testing.T) {
	f := newFixture(t, &proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 8}, nil)
	f.exec.Start()
	defer f.exec.Stop(context.Background())

	require.NoError(t, f.exec.Schedule(f.reserve("boom", func(ctx context.Context) (*engine.Proof, error) {
		panic("index out of range")
	})))
	rec := f.await("boom")
	assert.Equal(t, proofcache.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "job panicked")
	assert.Contains(t, rec.ErrorMessage, "index out of range")

	// 唯一的工作线程在 panic 后继续服务
	require.NoError(t, f.exec.Schedule(f.reserve("after", proofOf(`{}`))))
	assert.Equal(t, proofcache.StatusSucceeded, f.await("after").Status)

	workers := f.exec.GetStats()["workers"].(map[string]interface{})
	assert.Equal(t, int64(1), workers["total_panics"])
}

func TestNilProofAndEncodeFailure(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.exec.Start()
	defer f.exec.Stop(context.Background())

	require.NoError(t, f.exec.Schedule(f.reserve("nil", func(ctx context.Context) (*engine.Proof, error) {
		return nil, nil
	})))
	assert.Equal(t, proofcache.StatusFailed, f.await("nil").Status)

	g := newFixture(t, nil, fakeEncoder{fail: true})
	g.exec.Start()
	defer g.exec.Stop(context.Background())
	require.NoError(t, g.exec.Schedule(g.reserve("enc", proofOf(`{}`))))
	rec := g.await("enc")
	assert.Equal(t, proofcache.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "encoder broken")
}

func TestProofTimeout(t *testing.T) {
	f := newFixture(t, &proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 8, ProofTimeout: 20 * time.Millisecond}, nil)
	f.exec.Start()
	defer f.exec.Stop(context.Background())

	require.NoError(t, f.exec.Schedule(f.reserve("slow", func(ctx context.Context) (*engine.Proof, error) {
		<-ctx.Done()
		return nil, proverr.WrapProvingError("deposit", ctx.Err())
	})))
	rec := f.await("slow")
	assert.Equal(t, proofcache.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, context.DeadlineExceeded.Error())
}

func TestQueueFullRejectsWithFailedRecord(t *testing.T) {
	// 不启动工作线程，任务停留在队列中
	f := newFixture(t, &proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 1}, nil)

	require.NoError(t, f.exec.Schedule(f.reserve("first", proofOf(`{}`))))
	err := f.exec.Schedule(f.reserve("second", proofOf(`{}`)))
	require.Error(t, err)
	assert.ErrorIs(t, err, proverr.ErrJobRejected)

	// 被拒绝的任务立即写入失败记录
	rec, err := f.store.Get(context.Background(), "second")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, proofcache.StatusFailed, rec.Status)
	assert.Equal(t, 1, f.exec.QueueLen())

	// 停机时仍在排队的任务同样写入失败记录
	require.NoError(t, f.exec.Stop(context.Background()))
	rec, err = f.store.Get(context.Background(), "first")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, proofcache.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "shutting down")
	assert.Equal(t, 0, f.exec.QueueLen())
}

func TestStopWaitsForRunningJob(t *testing.T) {
	f := newFixture(t, &proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 8}, nil)
	f.exec.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, f.exec.Schedule(f.reserve("k", func(ctx context.Context) (*engine.Proof, error) {
		close(started)
		<-release
		return &engine.Proof{Stage: rollup.StageDeposit, PublicInputs: []byte(`{}`)}, nil
	})))
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- f.exec.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-stopped)

	rec, err := f.store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, proofcache.StatusSucceeded, rec.Status)

	// 停机后提交被拒绝
	err = f.exec.Schedule(f.reserve("late", proofOf(`{}`)))
	assert.ErrorIs(t, err, proverr.ErrJobRejected)
}

func TestStopHonorsContext(t *testing.T) {
	f := newFixture(t, &proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 8}, nil)
	f.exec.Start()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, f.exec.Schedule(f.reserve("k", func(ctx context.Context) (*engine.Proof, error) {
		close(started)
		<-release
		return nil, errors.New("released")
	})))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.exec.Stop(ctx), context.DeadlineExceeded)
}

func TestConcurrentJobsEachWriteOnce(t *testing.T) {
	f := newFixture(t, &proverconfig.ProverOptions{MaxConcurrentProofs: 4, MaxQueuedJobs: 64}, nil)
	f.exec.Start()
	defer f.exec.Stop(context.Background())

	var calls atomic.Int32
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, f.exec.Schedule(f.reserve(key, func(ctx context.Context) (*engine.Proof, error) {
			calls.Add(1)
			return &engine.Proof{Stage: rollup.StageDeposit, PublicInputs: []byte(`{}`)}, nil
		})))
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, proofcache.StatusSucceeded, f.await(fmt.Sprintf("k%d", i)).Status)
	}
	assert.Equal(t, int32(20), calls.Load())
	assert.Equal(t, int64(20), f.exec.GetStats()["persisted"])
}

func TestEventsDriveMetrics(t *testing.T) {
	clk := testutil.NewTestClock()
	store := proofcache.NewMemoryStore("", testTTL, clk)
	bus := eventbus.New()
	m := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, SubscribeMetrics(bus, m))
	require.NoError(t, SubscribeLogger(bus, testutil.NewTestLogger()))

	exec, err := New(&proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 1}, testTTL,
		store, fakeEncoder{}, bus, testutil.NewTestLogger(), clk)
	require.NoError(t, err)
	f := &fixture{t: t, exec: exec, store: store, clock: clk}

	require.NoError(t, exec.Schedule(f.reserve("ok", proofOf(`{}`))))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.queued))

	// 队列已满：拒绝计数
	assert.Error(t, exec.Schedule(f.reserve("full", proofOf(`{}`))))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.jobsTotal.WithLabelValues("deposit", "rejected")))

	exec.Start()
	defer exec.Stop(context.Background())
	require.Eventually(t, func() bool {
		return promtest.ToFloat64(m.jobsTotal.WithLabelValues("deposit", "completed")) == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(0), promtest.ToFloat64(m.queued))
	assert.Equal(t, float64(0), promtest.ToFloat64(m.running))
	assert.Equal(t, float64(0), promtest.ToFloat64(m.persistFailures))
}

func TestPersistFailuresCountOnlyStoreErrors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	// 预留被替换：正常的未写入，不计失败
	m.onFinished(JobEvent{Stage: "deposit", Status: TaskStatusCompleted, Ran: true})
	assert.Equal(t, float64(0), promtest.ToFloat64(m.persistFailures))

	m.onFinished(JobEvent{Stage: "deposit", Status: TaskStatusFailed, Ran: true, WriteErr: true})
	assert.Equal(t, float64(1), promtest.ToFloat64(m.persistFailures))
	assert.Equal(t, float64(2), promtest.ToFloat64(m.jobsTotal.WithLabelValues("deposit", "completed"))+
		promtest.ToFloat64(m.jobsTotal.WithLabelValues("deposit", "failed")))
}

func TestSupersededReservationIsNotAWriteFailure(t *testing.T) {
	clk := testutil.NewTestClock()
	store := proofcache.NewMemoryStore("", testTTL, clk)
	bus := eventbus.New()
	m := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, SubscribeMetrics(bus, m))

	finished := make(chan JobEvent, 1)
	require.NoError(t, bus.Subscribe(EventJobFinished, func(ev JobEvent) { finished <- ev }))

	exec, err := New(&proverconfig.ProverOptions{MaxConcurrentProofs: 1, MaxQueuedJobs: 1}, testTTL,
		store, fakeEncoder{}, bus, testutil.NewTestLogger(), clk)
	require.NoError(t, err)
	f := &fixture{t: t, exec: exec, store: store, clock: clk}

	task := f.reserve("k", proofOf(`{}`))
	// 预留过期后被另一作业取得
	clk.Advance(2 * testTTL)
	_, reserved, err := store.TryReserve(context.Background(), "k", proofcache.NewPending(clk.Now(), testTTL))
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, exec.Schedule(task))
	exec.Start()
	defer exec.Stop(context.Background())

	select {
	case ev := <-finished:
		assert.False(t, ev.Persisted)
		assert.False(t, ev.WriteErr)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	assert.Equal(t, float64(0), promtest.ToFloat64(m.persistFailures))
}

func TestPriorityQueueOrdersValidityFirst(t *testing.T) {
	q := NewTaskQueue(0, nil)
	base := testutil.NewTestTime()

	deposit := NewTask("a", rollup.StageDeposit, &proofcache.ProofRecord{}, proofOf(`{}`))
	deposit.CreatedAt = base
	validity := NewTask("b", rollup.StageValidity, &proofcache.ProofRecord{}, proofOf(`{}`))
	validity.CreatedAt = base.Add(time.Second)
	later := NewTask("c", rollup.StageDeposit, &proofcache.ProofRecord{}, proofOf(`{}`))
	later.CreatedAt = base.Add(2 * time.Second)

	require.NoError(t, q.Enqueue(later))
	require.NoError(t, q.Enqueue(deposit))
	require.NoError(t, q.Enqueue(validity))
	assert.Error(t, q.Enqueue(validity), "duplicate task id")

	assert.Equal(t, "b", q.Dequeue().Key)
	assert.Equal(t, "a", q.Dequeue().Key)
	assert.Equal(t, "c", q.Dequeue().Key)
	assert.Nil(t, q.Dequeue())
}
