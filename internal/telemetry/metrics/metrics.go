// Package metrics exposes SiMBA's kernel as Prometheus instrumentation
// (SPEC_FULL.md §7), mirroring ariadne's engine/monitoring use of
// prometheus.NewHistogramVec/NewCounterVec for per-stage pipeline timings.
// This is an ambient observability concern, carried regardless of any
// simulated-feature Non-goal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BarrierDuration observes the wall-clock time spent dispatching and
	// merging one barrier.
	BarrierDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "simba",
		Subsystem: "kernel",
		Name:      "barrier_seconds",
		Help:      "Wall-clock time spent dispatching and merging one barrier.",
	})
	// ActiveNodes gauges the number of alive nodes at the last barrier.
	ActiveNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "simba",
		Subsystem: "kernel",
		Name:      "active_nodes",
		Help:      "Number of alive nodes at the last barrier.",
	})
	// BarriersTotal counts barriers processed since kernel start.
	BarriersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simba",
		Subsystem: "kernel",
		Name:      "barriers_total",
		Help:      "Number of barriers processed since kernel start.",
	})
	// RecordsByStage counts records appended to the store, partitioned by
	// pipeline stage, the per-stage analogue of ariadne's stage counters.
	RecordsByStage = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "simba",
		Subsystem: "record",
		Name:      "appended_total",
		Help:      "Records appended to the store, partitioned by stage.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(BarrierDuration, ActiveNodes, BarriersTotal, RecordsByStage)
}

// ObserveBarrier records one barrier's duration and increments the
// barrier counter.
func ObserveBarrier(d time.Duration) {
	BarrierDuration.Observe(d.Seconds())
	BarriersTotal.Inc()
}

// SetActiveNodes sets the active-node gauge.
func SetActiveNodes(n int) {
	ActiveNodes.Set(float64(n))
}

// ObserveRecord increments the per-stage record counter.
func ObserveRecord(stage string) {
	RecordsByStage.WithLabelValues(stage).Inc()
}
