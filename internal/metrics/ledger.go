package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerState is the read side of the ledger sampled at scrape time.
type LedgerState interface {
	ActiveAlertsCount() int
	TotalProofs() int
	Paused() bool
}

// LedgerCollector counts ledger operations by outcome and samples ledger
// gauges on every scrape.
type LedgerCollector struct {
	operations *prometheus.CounterVec
	published  *prometheus.CounterVec
}

// NewLedgerCollector registers the ledger counters with reg. Gauges need a
// ledger and are registered separately by WatchState.
func NewLedgerCollector(reg prometheus.Registerer) (*LedgerCollector, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Ledger mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "delivered_total",
		Help:      "Ledger events handed to sinks by sink and result.",
	}, []string{"sink", "result"})

	if err := reg.Register(operations); err != nil {
		return nil, err
	}
	if err := reg.Register(published); err != nil {
		return nil, err
	}

	return &LedgerCollector{operations: operations, published: published}, nil
}

// ObserveOperation records the outcome of a ledger mutation.
func (c *LedgerCollector) ObserveOperation(op, outcome string) {
	c.operations.WithLabelValues(op, outcome).Inc()
}

// ObserveDelivery records an event sink delivery attempt.
func (c *LedgerCollector) ObserveDelivery(sink string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.published.WithLabelValues(sink, result).Inc()
}

// WatchState registers gauges sampled from state at scrape time.
func WatchState(reg prometheus.Registerer, state LedgerState) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "active_alerts",
			Help:      "Alerts that are active and not yet expired.",
		}, func() float64 { return float64(state.ActiveAlertsCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "proofs",
			Help:      "Data proofs submitted.",
		}, func() float64 { return float64(state.TotalProofs()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "paused",
			Help:      "1 while the circuit breaker is engaged.",
		}, func() float64 {
			if state.Paused() {
				return 1
			}
			return 0
		}),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
