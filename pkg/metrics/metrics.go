package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "goride_wallet"

// Metrics holds the wallet counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	webhooksTotal         *prometheus.CounterVec
	auditFailuresTotal    *prometheus.CounterVec
	versionConflictsTotal *prometheus.CounterVec
	withdrawalsTotal      *prometheus.CounterVec
	planActivationsTotal  *prometheus.CounterVec
	settledAmountTotal    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		webhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "deliveries_total",
				Help:      "Webhook deliveries partitioned by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		auditFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "audit_failures_total",
				Help:      "Webhook events rejected for amount or ownership mismatch.",
			},
			[]string{"provider", "reason"},
		),
		versionConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "version_conflicts_total",
				Help:      "Optimistic concurrency conflicts partitioned by document.",
			},
			[]string{"document"},
		),
		withdrawalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "withdrawal",
				Name:      "requests_total",
				Help:      "Withdrawal lifecycle transitions partitioned by action.",
			},
			[]string{"action"},
		),
		planActivationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plan",
				Name:      "activations_total",
				Help:      "Plan purchase outcomes partitioned by result.",
			},
			[]string{"result"},
		),
		settledAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "settled_amount_total",
				Help:      "Sum of settled transaction amounts partitioned by kind and status.",
			},
			[]string{"kind", "status"},
		),
	}
}

func (m *Metrics) ObserveWebhook(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveAuditFailure(provider, reason string) {
	if m == nil {
		return
	}
	m.auditFailuresTotal.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) ObserveVersionConflict(document string) {
	if m == nil {
		return
	}
	m.versionConflictsTotal.WithLabelValues(document).Inc()
}

func (m *Metrics) ObserveWithdrawal(action string) {
	if m == nil {
		return
	}
	m.withdrawalsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) ObservePlanActivation(result string) {
	if m == nil {
		return
	}
	m.planActivationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSettlement(kind, status string, amount float64) {
	if m == nil || amount < 0 {
		return
	}
	m.settledAmountTotal.WithLabelValues(kind, status).Add(amount)
}
