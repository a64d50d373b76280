package chainbase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObservesLockBankActivity(t *testing.T) {
	m := NewMetrics()
	dir := t.TempDir()

	lb, err := openLockBank(dir, ReadWrite, 2, m)
	require.NoError(t, err)
	defer lb.Close()

	require.NoError(t, lb.WithWriteLock(context.Background(), time.Second, func() error { return nil }))
	require.NoError(t, lb.WithReadLock(context.Background(), time.Second, func() error { return nil }))

	count, err := gatherCounterValue(m, "chainbase_lock_acquire_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, float64(2))

	p50, p99 := m.WaitLatency(LockExclusive)
	assert.GreaterOrEqual(t, p99, p50)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeAcquire(LockShared, time.Millisecond, true)
		m.observeCursor(3)
	})
}

func gatherCounterValue(m *Metrics, name string) (float64, error) {
	families, err := m.Registry().Gather()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total, nil
}
