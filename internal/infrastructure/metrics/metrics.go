// Package metrics holds the ledger's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the ledger-level collectors. A nil *Metrics is valid
// and records nothing, which keeps service tests free of a registry.
type Metrics struct {
	registry *prometheus.Registry

	tasksCreated      prometheus.Counter
	ethContributed    prometheus.Counter
	tokensContributed prometheus.Counter
	reservedTokens    prometheus.Gauge
	payouts           prometheus.Counter
	mints             prometheus.Counter
	deposits          prometheus.Counter
}

// New registers the ledger collectors on the given registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colony_tasks_created_total",
			Help: "Total number of tasks created",
		}),
		ethContributed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colony_eth_contributed_wei_total",
			Help: "Cumulative wei contributed to tasks",
		}),
		tokensContributed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colony_tokens_contributed_total",
			Help: "Cumulative token units contributed to tasks",
		}),
		reservedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colony_reserved_tokens",
			Help: "Token units currently reserved across all tasks",
		}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colony_payouts_total",
			Help: "Total number of completed payouts",
		}),
		mints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colony_mints_total",
			Help: "Total number of mint requests forwarded to the token contract",
		}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colony_deposits_total",
			Help: "Total number of native-currency deposit notices received",
		}),
	}

	registry.MustRegister(
		m.tasksCreated,
		m.ethContributed,
		m.tokensContributed,
		m.reservedTokens,
		m.payouts,
		m.mints,
		m.deposits,
	)

	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) TaskCreated() {
	if m != nil {
		m.tasksCreated.Inc()
	}
}

func (m *Metrics) EthContributed(wei uint64) {
	if m != nil {
		m.ethContributed.Add(float64(wei))
	}
}

func (m *Metrics) TokensContributed(amount uint64) {
	if m != nil {
		m.tokensContributed.Add(float64(amount))
	}
}

func (m *Metrics) ReservedTokensTotal(total uint64) {
	if m != nil {
		m.reservedTokens.Set(float64(total))
	}
}

func (m *Metrics) PayoutCompleted() {
	if m != nil {
		m.payouts.Inc()
	}
}

func (m *Metrics) MintRequested() {
	if m != nil {
		m.mints.Inc()
	}
}

func (m *Metrics) DepositReceived() {
	if m != nil {
		m.deposits.Inc()
	}
}
