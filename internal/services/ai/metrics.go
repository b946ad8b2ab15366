package ai

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for agent activity
type Metrics struct {
	runs          *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	rounds        prometheus.Histogram
	modelDuration prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns collectors registered once with the default registry
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics creates and registers the agent collectors on reg.
// Registration errors panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "agent",
				Name:      "runs_total",
				Help:      "Agent runs by outcome.",
			},
			[]string{"outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "agent",
				Name:      "tool_calls_total",
				Help:      "Tool executions by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		rounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "agent",
				Name:      "tool_rounds",
				Help:      "Tool rounds executed per agent run.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
			},
		),
		modelDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "agent",
				Name:      "model_call_duration_seconds",
				Help:      "Latency of model completion calls.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(m.runs, m.toolCalls, m.rounds, m.modelDuration)
	return m
}

func (m *Metrics) observeRun(outcome string, rounds int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.rounds.Observe(float64(rounds))
}

func (m *Metrics) observeTool(name ToolName, outcome ToolOutcome) {
	if m == nil {
		return
	}
	label := string(name)
	if outcome == OutcomeUnknownTool {
		label = "unknown"
	}
	m.toolCalls.WithLabelValues(label, string(outcome)).Inc()
}

func (m *Metrics) observeModelCall(seconds float64) {
	if m == nil {
		return
	}
	m.modelDuration.Observe(seconds)
}
