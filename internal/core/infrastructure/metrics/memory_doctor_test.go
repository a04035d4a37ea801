package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDoctorSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewMemoryDoctor(reg, 0, nil)

	s := d.SampleOnce()
	assert.NotZero(t, s.HeapAlloc)
	assert.NotZero(t, s.NumGoroutine)
	assert.Equal(t, float64(s.HeapAlloc), testutil.ToFloat64(d.heapAlloc))

	require.Len(t, d.GetHistory(), 1)
	assert.Equal(t, s.Time, d.GetCurrentStats().Time)
}

func TestMemoryDoctorHistoryBounded(t *testing.T) {
	d := NewMemoryDoctor(prometheus.NewRegistry(), 0, nil)
	d.historyMax = 3
	for i := 0; i < 5; i++ {
		d.SampleOnce()
	}
	assert.Len(t, d.GetHistory(), 3)
}

func TestNewRegistryGathers(t *testing.T) {
	reg := NewRegistry()
	NewMemoryDoctor(reg, 0, nil).SampleOnce()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rollup_memory_heap_alloc_bytes"])
	assert.True(t, names["go_goroutines"])
}
