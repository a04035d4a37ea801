package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 证明作业指标
type Metrics struct {
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobWait         *prometheus.HistogramVec
	queued          prometheus.Gauge
	running         prometheus.Gauge
	persistFailures prometheus.Counter
}

// NewMetrics 创建并注册作业指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollup",
			Subsystem: "prover",
			Name:      "jobs_total",
			Help:      "Total number of finished proof jobs",
		}, []string{"stage", "status"}), // status: completed/failed/rejected

		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollup",
			Subsystem: "prover",
			Name:      "job_duration_seconds",
			Help:      "Proof generation time per job",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms ~ 410s
		}, []string{"stage"}),

		jobWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollup",
			Subsystem: "prover",
			Name:      "job_wait_seconds",
			Help:      "Time a job spent queued before a worker picked it up",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),

		queued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rollup",
			Subsystem: "prover",
			Name:      "jobs_queued",
			Help:      "Number of proof jobs waiting for a worker",
		}),

		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rollup",
			Subsystem: "prover",
			Name:      "jobs_running",
			Help:      "Number of proof jobs being proven",
		}),

		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rollup",
			Subsystem: "prover",
			Name:      "terminal_write_failures_total",
			Help:      "Terminal records that could not be written to the proof store",
		}),
	}
}

func (m *Metrics) onScheduled(ev JobEvent) {
	m.queued.Inc()
}

func (m *Metrics) onStarted(ev JobEvent) {
	m.queued.Dec()
	m.running.Inc()
}

func (m *Metrics) onFinished(ev JobEvent) {
	status := string(ev.Status)
	switch {
	case ev.Ran:
		m.running.Dec()
		m.jobDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
		m.jobWait.WithLabelValues(ev.Stage).Observe(ev.Wait.Seconds())
	case ev.Queued:
		// 停机时仍在队列中
		m.queued.Dec()
		status = "rejected"
	default:
		status = "rejected"
	}
	m.jobsTotal.WithLabelValues(ev.Stage, status).Inc()
	if ev.WriteErr {
		m.persistFailures.Inc()
	}
}
