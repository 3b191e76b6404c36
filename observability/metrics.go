package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the governance pipeline's operational signals
type Metrics struct {
	// ToolCallDuration tracks how long the full authorization pipeline takes
	ToolCallDuration *prometheus.HistogramVec

	// ToolCallsTotal counts tool calls by terminal outcome
	ToolCallsTotal *prometheus.CounterVec

	// PolicyDenialsTotal counts policy denials
	PolicyDenialsTotal *prometheus.CounterVec

	// BudgetDenialsTotal counts budget denials by level (agent/org)
	BudgetDenialsTotal *prometheus.CounterVec

	// TokensDeducted counts tokens deducted from budgets
	TokensDeducted *prometheus.CounterVec

	// ActiveScopedTokens tracks the current size of the scoped token table
	ActiveScopedTokens prometheus.Gauge

	// ExecutionsTotal counts runtime executions by outcome
	ExecutionsTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors in reg. A nil registerer wires the
// metrics to a throwaway local registry, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ToolCallDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "governance_tool_call_duration_seconds",
			Help:    "Histogram of authorization proxy pipeline latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"tool", "result"}),

		ToolCallsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_tool_calls_total",
			Help: "Total tool calls processed by the authorization proxy.",
		}, []string{"tool", "result"}),

		PolicyDenialsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_policy_denials_total",
			Help: "Total policy evaluation denials.",
		}, []string{"tool"}),

		BudgetDenialsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_budget_denials_total",
			Help: "Total budget pre-flight denials by budget level.",
		}, []string{"level"}),

		TokensDeducted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_tokens_deducted_total",
			Help: "Total tokens deducted from budgets.",
		}, []string{"level"}),

		ActiveScopedTokens: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "governance_active_scoped_tokens",
			Help: "Current number of live scoped tokens.",
		}),

		ExecutionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_executions_total",
			Help: "Total runtime executions by outcome.",
		}, []string{"result"}),
	}
}
