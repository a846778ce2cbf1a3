package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kura",
		Subsystem: "workflow",
		Name:      "queries_total",
		Help:      "Workflow queries processed, by outcome.",
	}, []string{"outcome"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kura",
		Subsystem: "workflow",
		Name:      "query_duration_seconds",
		Help:      "End-to-end workflow processing time.",
		Buckets:   prometheus.DefBuckets,
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kura",
		Subsystem: "workflow",
		Name:      "stage_duration_seconds",
		Help:      "Per-stage execution time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kura",
		Subsystem: "workflow",
		Name:      "stage_failures_total",
		Help:      "Stage executions that degraded to a fallback.",
	}, []string{"stage"})

	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kura",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "LLM tokens consumed.",
	}, []string{"model", "direction"})

	llmCostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kura",
		Subsystem: "llm",
		Name:      "cost_dollars_total",
		Help:      "Estimated LLM spend in dollars.",
	}, []string{"model"})
)

func observeQuery(event QueryEvent) {
	outcome := "success"
	if !event.Success {
		outcome = "failure"
	}
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDuration.Observe(event.ProcessingTime.Seconds())
}

func observeStage(event StageEvent) {
	stageDuration.WithLabelValues(event.Stage).Observe(event.Duration.Seconds())
	if !event.Success {
		stageFailuresTotal.WithLabelValues(event.Stage).Inc()
	}
}

func observeLLM(event LLMEvent) {
	llmTokensTotal.WithLabelValues(event.Model, "input").Add(float64(event.InputTokens))
	llmTokensTotal.WithLabelValues(event.Model, "output").Add(float64(event.OutputTokens))
	llmCostTotal.WithLabelValues(event.Model).Add(event.Cost)
}
