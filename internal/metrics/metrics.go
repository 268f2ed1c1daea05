package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the checkout core. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
	stockDeltas      *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_total",
				Help: "Checkout attempts by payment method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		checkoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_duration_seconds",
				Help:    "Duration of checkout requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		stockDeltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_delta_total",
				Help: "Conditional stock updates by direction (reserve|restore) and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transition_total",
				Help: "Order lifecycle transitions by target status.",
			},
			[]string{"to"},
		),
	}
	reg.MustRegister(m.checkouts, m.checkoutDuration, m.stockDeltas, m.transitions)
	return m
}

func (m *Metrics) ObserveCheckout(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(method, outcome).Inc()
	m.checkoutDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) StockDelta(direction, outcome string) {
	if m == nil {
		return
	}
	m.stockDeltas.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}
