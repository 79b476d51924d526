package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AllocationMetrics содержит метрики распределения заказов и условного
// списания остатков.
type AllocationMetrics struct {
	// Счётчики исходов распределения
	allocationsTotal  *prometheus.CounterVec
	candidatesSkipped prometheus.Counter

	// Счётчики условного списания
	decrementAttempts prometheus.Counter
	versionConflicts  prometheus.Counter
	retriesExhausted  prometheus.Counter

	// Гистограммы времени выполнения
	allocationDuration prometheus.Histogram
	decrementDuration  prometheus.Histogram

	// Счётчики корректировок и событий outbox
	adjustments  prometheus.Counter
	outboxEvents prometheus.Counter

	// Gauge для активных распределений
	activeAllocations prometheus.Gauge
}

// NewAllocationMetrics создаёт новый экземпляр метрик распределения.
func NewAllocationMetrics() *AllocationMetrics {
	return newAllocationMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newAllocationMetricsWithRegisterer(registerer prometheus.Registerer) *AllocationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &AllocationMetrics{
		allocationsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fms_allocations_total",
			Help: "Total number of allocation attempts by result code",
		}, []string{"result"}),
		candidatesSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_allocation_candidates_skipped_total",
			Help: "Total number of ranked candidates skipped for insufficient stock",
		}),
		decrementAttempts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_stock_decrement_attempts_total",
			Help: "Total number of conditional decrement attempts",
		}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_stock_version_conflicts_total",
			Help: "Total number of version conflicts hit by conditional decrements",
		}),
		retriesExhausted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_stock_retries_exhausted_total",
			Help: "Total number of decrements that exhausted the retry budget",
		}),
		allocationDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "fms_allocation_duration_seconds",
			Help:    "Duration of allocation operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		decrementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "fms_stock_decrement_duration_seconds",
			Help:    "Duration of conditional stock decrements in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		adjustments: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_stock_adjustments_total",
			Help: "Total number of manual stock adjustments recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeAllocations: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "fms_active_allocations",
			Help: "Number of allocation operations currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordAllocationResult увеличивает счётчик распределений с данным исходом.
// Исход это "committed" либо машинный код ошибки.
func (m *AllocationMetrics) RecordAllocationResult(result string) {
	m.allocationsTotal.WithLabelValues(result).Inc()
}

// RecordCandidateSkipped увеличивает счётчик пропущенных кандидатов.
func (m *AllocationMetrics) RecordCandidateSkipped() {
	m.candidatesSkipped.Inc()
}

// RecordDecrementAttempt увеличивает счётчик попыток условного списания.
func (m *AllocationMetrics) RecordDecrementAttempt() {
	m.decrementAttempts.Inc()
}

// RecordVersionConflict увеличивает счётчик конфликтов версий.
func (m *AllocationMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordRetriesExhausted увеличивает счётчик исчерпанных бюджетов повторов.
func (m *AllocationMetrics) RecordRetriesExhausted() {
	m.retriesExhausted.Inc()
}

// RecordAllocationDuration записывает время выполнения распределения.
func (m *AllocationMetrics) RecordAllocationDuration(duration time.Duration) {
	m.allocationDuration.Observe(duration.Seconds())
}

// RecordDecrementDuration записывает время выполнения условного списания.
func (m *AllocationMetrics) RecordDecrementDuration(duration time.Duration) {
	m.decrementDuration.Observe(duration.Seconds())
}

// RecordAdjustment увеличивает счётчик ручных корректировок остатка.
func (m *AllocationMetrics) RecordAdjustment() {
	m.adjustments.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *AllocationMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordAllocationInFlightStarted увеличивает количество активных распределений.
func (m *AllocationMetrics) RecordAllocationInFlightStarted() {
	m.activeAllocations.Inc()
}

// RecordAllocationInFlightFinished уменьшает количество активных распределений.
func (m *AllocationMetrics) RecordAllocationInFlightFinished() {
	m.activeAllocations.Dec()
}
