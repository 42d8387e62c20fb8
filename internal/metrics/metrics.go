package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Cart groups the collectors of the cart service.
type Cart struct {
	Mutations    *prometheus.CounterVec
	Conflicts    prometheus.Counter
	BreakerState prometheus.Gauge
}

// NewCart creates the cart collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests rely on.
func NewCart(reg prometheus.Registerer) *Cart {
	m := &Cart{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopcart",
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and result.",
		}, []string{"op", "result"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shopcart",
			Name:      "cart_version_conflicts_total",
			Help:      "Optimistic concurrency conflicts hit while saving a cart.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shopcart",
			Name:      "catalog_breaker_state",
			Help:      "Product catalog circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Mutations, m.Conflicts, m.BreakerState)
	}
	return m
}

func (m *Cart) ObserveMutation(op, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

func (m *Cart) ObserveConflict() {
	if m == nil {
		return
	}
	m.Conflicts.Inc()
}

// ObserveBreaker has the signature of a gobreaker state change callback.
func (m *Cart) ObserveBreaker(_ string, _, to gobreaker.State) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(to))
}
