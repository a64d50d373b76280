// Lock-bank instrumentation: prometheus counters for outcomes plus an
// HdrHistogram for acquisition latency, grounded on dreamsxin-wal's use
// of the same pairing for its write-ahead log's fsync latency. Exposed
// as a registry a caller can scrape, rather than binding an HTTP
// listener — the spec's Non-goals exclude networked access, and a
// store-internal metrics type binding a port itself would violate that.
package chainbase

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects RW Lock Manager counters and latency histograms. The
// zero value is not usable; construct with NewMetrics.
type Metrics struct {
	registry *prometheus.Registry

	acquireTotal  *prometheus.CounterVec
	timeoutTotal  *prometheus.CounterVec
	currentCursor prometheus.Gauge

	mu        sync.Mutex
	readWaitNanos  *hdrhistogram.Histogram
	writeWaitNanos *hdrhistogram.Histogram
}

// NewMetrics builds a Metrics with its own prometheus.Registry, ready to
// be scraped or merged into a caller's own registry via Gather.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		acquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainbase_lock_acquire_total",
			Help: "RW lock bank acquisitions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		timeoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainbase_lock_timeout_total",
			Help: "RW lock bank acquisitions that exceeded wait_micros.",
		}, []string{"mode"}),
		currentCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainbase_lock_current_index",
			Help: "Current value of the lock bank's rotating cursor.",
		}),
		// HdrHistogram over a 1ns-1min range at 3 significant digits,
		// tracking lock wait latency: enough dynamic range to catch
		// both the fast, uncontended case and pathological stalls.
		readWaitNanos:  hdrhistogram.New(1, int64(time.Minute), 3),
		writeWaitNanos: hdrhistogram.New(1, int64(time.Minute), 3),
	}
	m.registry.MustRegister(m.acquireTotal, m.timeoutTotal, m.currentCursor)
	return m
}

// Registry returns the prometheus registry backing this Metrics, for
// callers that want to merge it into their own HTTP exposition.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func lockModeLabel(mode LockMode) string {
	if mode == LockExclusive {
		return "write"
	}
	return "read"
}

func (m *Metrics) observeAcquire(mode LockMode, wait time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := "timeout"
	if ok {
		outcome = "acquired"
	}
	m.acquireTotal.WithLabelValues(lockModeLabel(mode), outcome).Inc()
	if !ok {
		m.timeoutTotal.WithLabelValues(lockModeLabel(mode)).Inc()
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == LockExclusive {
		m.writeWaitNanos.RecordValue(wait.Nanoseconds())
	} else {
		m.readWaitNanos.RecordValue(wait.Nanoseconds())
	}
}

func (m *Metrics) observeCursor(index int) {
	if m == nil {
		return
	}
	m.currentCursor.Set(float64(index))
}

// WaitLatency reports the p50/p99 lock wait latency observed so far,
// per mode, for diagnostics or tests.
func (m *Metrics) WaitLatency(mode LockMode) (p50, p99 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.readWaitNanos
	if mode == LockExclusive {
		h = m.writeWaitNanos
	}
	return time.Duration(h.ValueAtQuantile(50)), time.Duration(h.ValueAtQuantile(99))
}
