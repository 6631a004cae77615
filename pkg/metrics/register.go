package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics records register-level payment, allocation and session activity.
type RegisterMetrics struct {
	transitions    *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	skuAllocations *prometheus.CounterVec
	ordersFinal    *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
	idleLogouts    *prometheus.CounterVec
}

// NewRegisterMetrics registers the register metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewRegisterMetrics(reg prometheus.Registerer) *RegisterMetrics {
	if reg == nil {
		return &RegisterMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payment_transitions_total",
		Help: "Payment state machine transitions.",
	}, []string{"from", "to"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_gateway_step_duration_seconds",
		Help:    "Duration of card gateway steps in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"step", "outcome"})
	skuAllocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sku_allocations_total",
		Help: "SKU allocations by backend and outcome.",
	}, []string{"backend", "outcome"})
	ordersFinal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_orders_finalized_total",
		Help: "Orders persisted after a settled payment.",
	}, []string{"method"})
	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_reconciliation_alerts_total",
		Help: "Settled payments whose order could not be persisted.",
	}, []string{"method"})
	idleLogouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_idle_logouts_total",
		Help: "Idle watchdog decisions.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, stepDuration, skuAllocations, ordersFinal, reconciliation, idleLogouts)
	return &RegisterMetrics{
		transitions:    transitions,
		stepDuration:   stepDuration,
		skuAllocations: skuAllocations,
		ordersFinal:    ordersFinal,
		reconciliation: reconciliation,
		idleLogouts:    idleLogouts,
	}
}

// ObserveTransition counts a payment state change.
func (m *RegisterMetrics) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveGatewayStep records how long a gateway call took and whether it succeeded.
func (m *RegisterMetrics) ObserveGatewayStep(step string, duration time.Duration, err error) {
	if m == nil || m.stepDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stepDuration.WithLabelValues(normalizeLabel(step), outcome).Observe(duration.Seconds())
}

// IncSKUAllocation counts one allocation attempt outcome (ok, fallback, duplicate, error).
func (m *RegisterMetrics) IncSKUAllocation(backend, outcome string) {
	if m == nil || m.skuAllocations == nil {
		return
	}
	m.skuAllocations.WithLabelValues(normalizeLabel(backend), normalizeLabel(outcome)).Inc()
}

// IncOrderFinalized counts a persisted order.
func (m *RegisterMetrics) IncOrderFinalized(method string) {
	if m == nil || m.ordersFinal == nil {
		return
	}
	m.ordersFinal.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncReconciliation counts a settled payment that failed to persist.
func (m *RegisterMetrics) IncReconciliation(method string) {
	if m == nil || m.reconciliation == nil {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncIdleLogout counts a watchdog decision (cleared, deferred, released).
func (m *RegisterMetrics) IncIdleLogout(outcome string) {
	if m == nil || m.idleLogouts == nil {
		return
	}
	m.idleLogouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
