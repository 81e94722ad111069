package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes dispatch counters to Prometheus. Construct once per
// process; promauto registers with the default registry.
type Metrics struct {
	EventsTotal      *prometheus.CounterVec
	OutcomesTotal    *prometheus.CounterVec
	TimeoutsTotal    prometheus.Counter
	DispatchDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_dispatch_events_total",
			Help: "Total events dispatched to at least one subscriber, by kind",
		}, []string{"kind"}),
		OutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_dispatch_outcomes_total",
			Help: "Per-subscriber notification outcomes, by result",
		}, []string{"result"}),
		TimeoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_dispatch_timeouts_total",
			Help: "Subscriber notifications abandoned at the async deadline",
		}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkwell_dispatch_duration_seconds",
			Help:    "Wall time of one dispatch call across all subscribers",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeEvent(kind Kind) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	result := "success"
	if !o.Success {
		result = "failure"
	}
	m.OutcomesTotal.WithLabelValues(result).Inc()
	if o.TimedOut {
		m.TimeoutsTotal.Inc()
	}
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(seconds)
}
