// Package monitor tracks runtime performance of the trading core.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks overall core performance.
type Metrics struct {
	// Latency histograms
	EvalLatency  *LatencyHistogram
	RouteLatency *LatencyHistogram
	DBLatency    *LatencyHistogram

	// Counters
	ticksProcessed   uint64
	signalsGenerated uint64
	ordersRouted     uint64
	simulatedFills   uint64
	errorsCount      uint64
}

// LatencyHistogram keeps a sliding window of samples and computes stats
// lazily.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

func NewMetrics() *Metrics {
	return &Metrics{
		EvalLatency:  NewLatencyHistogram(1000),
		RouteLatency: NewLatencyHistogram(1000),
		DBLatency:    NewLatencyHistogram(1000),
	}
}

func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts d to milliseconds and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99, recomputing only when the
// window has changed.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	p95 := int(float64(n) * 0.95)
	p99 := int(float64(n) * 0.99)
	if p95 >= n {
		p95 = n - 1
	}
	if p99 >= n {
		p99 = n - 1
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[p95],
		P99:   sorted[p99],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *Metrics) IncrementTicks()     { atomic.AddUint64(&m.ticksProcessed, 1) }
func (m *Metrics) IncrementSignals()   { atomic.AddUint64(&m.signalsGenerated, 1) }
func (m *Metrics) IncrementOrders()    { atomic.AddUint64(&m.ordersRouted, 1) }
func (m *Metrics) IncrementSimulated() { atomic.AddUint64(&m.simulatedFills, 1) }
func (m *Metrics) IncrementErrors()    { atomic.AddUint64(&m.errorsCount, 1) }

// Snapshot is a point-in-time view for the metrics endpoint.
type Snapshot struct {
	EvalLatency      LatencyStats `json:"eval_latency"`
	RouteLatency     LatencyStats `json:"route_latency"`
	DBLatency        LatencyStats `json:"db_latency"`
	TicksProcessed   uint64       `json:"ticks_processed"`
	SignalsGenerated uint64       `json:"signals_generated"`
	OrdersRouted     uint64       `json:"orders_routed"`
	SimulatedFills   uint64       `json:"simulated_fills"`
	ErrorsCount      uint64       `json:"errors_count"`
	ActiveSessions   int          `json:"active_sessions"`
	GoroutineCount   int          `json:"goroutine_count"`
	HeapAlloc        uint64       `json:"heap_alloc_bytes"`
	Timestamp        time.Time    `json:"timestamp"`
}

// GetSnapshot captures the current metrics. activeSessions comes from the
// orchestrator since only it knows the registry size.
func (m *Metrics) GetSnapshot(activeSessions int) Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Snapshot{
		EvalLatency:      m.EvalLatency.Stats(),
		RouteLatency:     m.RouteLatency.Stats(),
		DBLatency:        m.DBLatency.Stats(),
		TicksProcessed:   atomic.LoadUint64(&m.ticksProcessed),
		SignalsGenerated: atomic.LoadUint64(&m.signalsGenerated),
		OrdersRouted:     atomic.LoadUint64(&m.ordersRouted),
		SimulatedFills:   atomic.LoadUint64(&m.simulatedFills),
		ErrorsCount:      atomic.LoadUint64(&m.errorsCount),
		ActiveSessions:   activeSessions,
		GoroutineCount:   runtime.NumGoroutine(),
		HeapAlloc:        memStats.HeapAlloc,
		Timestamp:        time.Now(),
	}
}

// Timer measures one operation into a histogram.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
