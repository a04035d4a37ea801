package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pbnjay/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// HeapSample 一次内存采样
type HeapSample struct {
	Time         time.Time `json:"time"`
	HeapAlloc    uint64    `json:"heap_alloc"`
	HeapInuse    uint64    `json:"heap_inuse"`
	Sys          uint64    `json:"sys"`
	NumGC        uint32    `json:"num_gc"`
	NumGoroutine int       `json:"num_goroutine"`

	// 系统内存（pbnjay/memory），不支持的平台为 0
	SystemTotal uint64 `json:"system_total"`
	SystemFree  uint64 `json:"system_free"`
}

// MemoryDoctor 周期性采样进程与系统内存
//
// 证明密钥常驻内存且证明计算占用大量堆，采样结果同时导出为指标
// 并供健康检查读取。
type MemoryDoctor struct {
	interval   time.Duration
	historyMax int
	logger     *zap.Logger

	mu      sync.RWMutex
	history []HeapSample

	heapAlloc    prometheus.Gauge
	systemFree   prometheus.Gauge
	systemTotal  prometheus.Gauge
	numGoroutine prometheus.Gauge
}

// NewMemoryDoctor 创建内存采样器，指标注册到 reg
func NewMemoryDoctor(reg prometheus.Registerer, interval time.Duration, logger *zap.Logger) *MemoryDoctor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rollup",
			Subsystem: "memory",
			Name:      name,
			Help:      help,
		})
	}
	return &MemoryDoctor{
		interval:     interval,
		historyMax:   120,
		logger:       logger,
		heapAlloc:    gauge("heap_alloc_bytes", "Go heap bytes allocated"),
		systemFree:   gauge("system_free_bytes", "Free system memory in bytes"),
		systemTotal:  gauge("system_total_bytes", "Total system memory in bytes"),
		numGoroutine: gauge("goroutines", "Number of goroutines"),
	}
}

// Start 定时采样，ctx 取消后返回
func (d *MemoryDoctor) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.SampleOnce()
		}
	}
}

// SampleOnce 立即采样一次
func (d *MemoryDoctor) SampleOnce() HeapSample {
	s := takeSample()

	d.heapAlloc.Set(float64(s.HeapAlloc))
	d.systemFree.Set(float64(s.SystemFree))
	d.systemTotal.Set(float64(s.SystemTotal))
	d.numGoroutine.Set(float64(s.NumGoroutine))

	d.mu.Lock()
	d.history = append(d.history, s)
	if len(d.history) > d.historyMax {
		d.history = d.history[len(d.history)-d.historyMax:]
	}
	d.mu.Unlock()

	// 系统可用内存低于 10% 时告警
	if s.SystemTotal > 0 && s.SystemFree*10 < s.SystemTotal {
		d.logger.Warn("系统可用内存不足",
			zap.Uint64("system_free", s.SystemFree),
			zap.Uint64("system_total", s.SystemTotal),
			zap.Uint64("heap_alloc", s.HeapAlloc))
	}
	return s
}

// GetCurrentStats 最近一次采样；尚未采样时现场采样
func (d *MemoryDoctor) GetCurrentStats() HeapSample {
	d.mu.RLock()
	n := len(d.history)
	if n > 0 {
		s := d.history[n-1]
		d.mu.RUnlock()
		return s
	}
	d.mu.RUnlock()
	return takeSample()
}

// GetHistory 采样历史副本
func (d *MemoryDoctor) GetHistory() []HeapSample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]HeapSample, len(d.history))
	copy(out, d.history)
	return out
}

func takeSample() HeapSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return HeapSample{
		Time:         time.Now(),
		HeapAlloc:    ms.HeapAlloc,
		HeapInuse:    ms.HeapInuse,
		Sys:          ms.Sys,
		NumGC:        ms.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
		SystemTotal:  memory.TotalMemory(),
		SystemFree:   memory.FreeMemory(),
	}
}
