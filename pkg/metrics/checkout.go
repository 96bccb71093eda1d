package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts order submission outcomes.
type CheckoutMetrics struct {
	submitted *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Order submission attempts, by outcome.",
	}, []string{"outcome"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations applied, by operation.",
	}, []string{"op"})
	reg.MustRegister(submitted, mutations)
	return &CheckoutMetrics{
		submitted: submitted,
		mutations: mutations,
	}
}

// IncSubmission records one submission attempt outcome (completed, rejected, network_error).
func (c *CheckoutMetrics) IncSubmission(outcome string) {
	if c == nil || c.submitted == nil {
		return
	}
	c.submitted.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCartMutation records one applied cart mutation (add, remove, clear).
func (c *CheckoutMetrics) IncCartMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}
