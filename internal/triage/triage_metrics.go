package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the intake pipeline. All methods
// are nil-safe so the Service can run without a registry in tests.
type Metrics struct {
	IntakesTotal        *prometheus.CounterVec
	IntakeDuration      prometheus.Histogram
	LatchActivations    prometheus.Counter
	FloorOverrides      prometheus.Counter
	AdapterFailures     *prometheus.CounterVec
	SessionSaveFailures prometheus.Counter
	SessionConflicts    prometheus.Counter
	CaseCommits         *prometheus.CounterVec
	LLMCallsTotal       prometheus.Counter
	LLMTokensIn         prometheus.Counter
	LLMTokensOut        prometheus.Counter
}

// NewMetrics registers and returns intake metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IntakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medflow_intakes_total",
			Help: "Total intake pipeline runs by final priority level.",
		}, []string{"level"}),
		IntakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medflow_intake_duration_seconds",
			Help:    "Duration of intake pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		LatchActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_latch_activations_total",
			Help: "Intakes evaluated with an active emergency latch from a prior turn.",
		}),
		FloorOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_floor_overrides_total",
			Help: "Model classifications raised to the deterministic rule floor.",
		}),
		AdapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medflow_adapter_failures_total",
			Help: "Pipeline stage failures absorbed by fail-safe defaults.",
		}, []string{"stage"}),
		SessionSaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_session_save_failures_total",
			Help: "Session latch writes that failed after retry.",
		}),
		SessionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_session_version_conflicts_total",
			Help: "Session latch writes rejected by the version precondition.",
		}),
		CaseCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medflow_case_commits_total",
			Help: "Case workflow outcomes by status.",
		}, []string{"status"}),
		LLMCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_llm_calls_total",
			Help: "Total LLM provider calls.",
		}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medflow_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
	}

	reg.MustRegister(
		m.IntakesTotal,
		m.IntakeDuration,
		m.LatchActivations,
		m.FloorOverrides,
		m.AdapterFailures,
		m.SessionSaveFailures,
		m.SessionConflicts,
		m.CaseCommits,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
	)

	return m
}

// ObserveLLMUsage records token accounting for one provider call. Wired
// into the LLM clients as their usage hook.
func (m *Metrics) ObserveLLMUsage(inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.Inc()
	m.LLMTokensIn.Add(float64(inputTokens))
	m.LLMTokensOut.Add(float64(outputTokens))
}

func (m *Metrics) incIntake(level Level, duration float64) {
	if m == nil {
		return
	}
	m.IntakesTotal.WithLabelValues(string(level)).Inc()
	m.IntakeDuration.Observe(duration)
}

func (m *Metrics) incLatch() {
	if m == nil {
		return
	}
	m.LatchActivations.Inc()
}

func (m *Metrics) incFloorOverride() {
	if m == nil {
		return
	}
	m.FloorOverrides.Inc()
}

func (m *Metrics) incAdapterFailure(stage string) {
	if m == nil {
		return
	}
	m.AdapterFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) incSessionSaveFailure() {
	if m == nil {
		return
	}
	m.SessionSaveFailures.Inc()
}

func (m *Metrics) incSessionConflict() {
	if m == nil {
		return
	}
	m.SessionConflicts.Inc()
}

func (m *Metrics) incCaseCommit(status string) {
	if m == nil {
		return
	}
	m.CaseCommits.WithLabelValues(status).Inc()
}
