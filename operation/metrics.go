package operation

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricEntry aggregates executions of one operation type. AverageMs is a
// cumulative moving average over every execution, failed ones included.
type MetricEntry struct {
	Count        int           `json:"count"`
	Errors       int           `json:"errors"`
	AverageMs    float64       `json:"averageMs"`
	LastDuration time.Duration `json:"lastDuration"`
}

type metricsTable struct {
	mu      sync.Mutex
	entries map[core.OperationType]*MetricEntry

	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetricsTable(reg prometheus.Registerer) *metricsTable {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notegen",
		Subsystem: "operation",
		Name:      "executions_total",
		Help:      "Operation executions by type, provider and outcome.",
	}, []string{"type", "provider", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notegen",
		Subsystem: "operation",
		Name:      "duration_seconds",
		Help:      "Wall clock time of operation executions.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"type"})

	return &metricsTable{
		entries:  make(map[core.OperationType]*MetricEntry),
		total:    registerCollector(reg, total),
		duration: registerCollector(reg, duration),
	}
}

// registerCollector registers c, reusing an identical collector that is
// already registered.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (t *metricsTable) record(op core.OperationType, provider string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	t.total.WithLabelValues(string(op), provider, outcome).Inc()
	t.duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[op]
	if !ok {
		e = &MetricEntry{}
		t.entries[op] = e
	}
	e.Count++
	ms := float64(elapsed) / float64(time.Millisecond)
	e.AverageMs += (ms - e.AverageMs) / float64(e.Count)
	e.LastDuration = elapsed
	if err != nil {
		e.Errors++
	}
}

func (t *metricsTable) snapshot() map[core.OperationType]MetricEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[core.OperationType]MetricEntry, len(t.entries))
	for k, v := range t.entries {
		out[k] = *v
	}
	return out
}
