package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ModelStageSnippet     = "snippet"
	ModelStageExplanation = "explanation"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckchat_turns_total",
			Help: "Total number of chat turns by outcome.",
		},
		[]string{"outcome"},
	)
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckchat_model_calls_total",
			Help: "Total number of model calls by pipeline stage and status.",
		},
		[]string{"stage", "status"},
	)
	modelCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckchat_model_call_duration_seconds",
			Help:    "Model call latency including retries, by pipeline stage.",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60, 120},
		},
		[]string{"stage"},
	)
	modelRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duckchat_model_retries_total",
			Help: "Total number of retried model call attempts.",
		},
	)
	snippetExecutionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckchat_snippet_execution_duration_seconds",
			Help:    "Sandboxed snippet execution latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	activeTurns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckchat_active_turns",
			Help: "Number of turns currently being processed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		modelCallsTotal,
		modelCallDurationSeconds,
		modelRetriesTotal,
		snippetExecutionDurationSeconds,
		activeTurns,
	)
}

func ObserveTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

func ObserveModelCall(stage string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelCallsTotal.WithLabelValues(stage, status).Inc()
	modelCallDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementModelRetries() {
	modelRetriesTotal.Inc()
}

func ObserveSnippetExecution(elapsed time.Duration) {
	snippetExecutionDurationSeconds.Observe(elapsed.Seconds())
}

func TurnStarted() {
	activeTurns.Inc()
}

func TurnFinished() {
	activeTurns.Dec()
}
