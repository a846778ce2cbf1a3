package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/NabidKabir/kura-final-project/config"
)

// Telemetry aggregates workflow, stage, and LLM metrics in-process and
// tracks LLM spend. Aggregates feed the ops endpoint and the performance
// report; prometheus collectors are updated alongside them.
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds the aggregated counters and averages.
type Metrics struct {
	// Query metrics
	TotalQueries          int64
	SuccessfulQueries     int64
	FailedQueries         int64
	AverageProcessingTime time.Duration

	// Stage metrics
	StageExecutions   map[string]int64
	StageFailures     map[string]int64
	StageAverageTimes map[string]time.Duration

	// Domain metrics
	WasteTypeCounts map[string]int64

	// LLM metrics
	LLMRequests       map[string]int64
	LLMTokensUsed     map[string]int64
	LLMAverageLatency map[string]time.Duration
}

// CostTracker tracks LLM spend across models and days.
type CostTracker struct {
	DailyCosts map[string]float64 // date -> cost
	ModelCosts map[string]float64 // model -> cost

	TotalCost   float64
	TotalTokens int64
}

// QueryEvent describes one complete workflow run.
type QueryEvent struct {
	ID             string
	Query          string
	StartTime      time.Time
	EndTime        time.Time
	ProcessingTime time.Duration
	Success        bool
	Error          string
	WasteType      string
	Facilities     int
	Iterations     int
}

// StageEvent describes a single stage execution within a run.
type StageEvent struct {
	QueryID   string
	Stage     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// LLMEvent describes one LLM call.
type LLMEvent struct {
	Model        string
	StartTime    time.Time
	Duration     time.Duration
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	Success      bool
	Error        string
}

// NewTelemetry creates a new telemetry instance.
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: config,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StageExecutions:   make(map[string]int64),
			StageFailures:     make(map[string]int64),
			StageAverageTimes: make(map[string]time.Duration),
			WasteTypeCounts:   make(map[string]int64),
			LLMRequests:       make(map[string]int64),
			LLMTokensUsed:     make(map[string]int64),
			LLMAverageLatency: make(map[string]time.Duration),
		},
		costTracker: &CostTracker{
			DailyCosts: make(map[string]float64),
			ModelCosts: make(map[string]float64),
		},
	}

	// Periodic snapshots can be disabled via config
	if config.Enabled && config.PeriodicLogs {
		go t.startMetricsCollection()
		go t.startCostReporting()
	}

	return t
}

// RecordQueryEvent records a complete workflow run.
func (t *Telemetry) RecordQueryEvent(ctx context.Context, event QueryEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalQueries++
	if event.Success {
		t.metrics.SuccessfulQueries++
	} else {
		t.metrics.FailedQueries++
	}

	// Rolling average over all runs
	if t.metrics.TotalQueries == 1 {
		t.metrics.AverageProcessingTime = event.ProcessingTime
	} else {
		total := t.metrics.AverageProcessingTime * time.Duration(t.metrics.TotalQueries-1)
		t.metrics.AverageProcessingTime = (total + event.ProcessingTime) / time.Duration(t.metrics.TotalQueries)
	}

	if event.WasteType != "" {
		t.metrics.WasteTypeCounts[event.WasteType]++
	}

	observeQuery(event)

	t.logger.Printf("Query Event: ID=%s, Success=%t, Duration=%v, WasteType=%s, Facilities=%d, Iterations=%d",
		event.ID, event.Success, event.ProcessingTime, event.WasteType, event.Facilities, event.Iterations)
}

// RecordStageEvent records one stage execution.
func (t *Telemetry) RecordStageEvent(ctx context.Context, event StageEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.StageExecutions[event.Stage]++
	if !event.Success {
		t.metrics.StageFailures[event.Stage]++
	}

	executions := t.metrics.StageExecutions[event.Stage]
	if executions == 1 {
		t.metrics.StageAverageTimes[event.Stage] = event.Duration
	} else {
		total := t.metrics.StageAverageTimes[event.Stage] * time.Duration(executions-1)
		t.metrics.StageAverageTimes[event.Stage] = (total + event.Duration) / time.Duration(executions)
	}

	observeStage(event)

	t.logger.Printf("Stage Event: Query=%s, Stage=%s, Success=%t, Duration=%v",
		event.QueryID, event.Stage, event.Success, event.Duration)
}

// RecordLLMEvent records one LLM call.
func (t *Telemetry) RecordLLMEvent(ctx context.Context, event LLMEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tokens := event.InputTokens + event.OutputTokens

	t.metrics.LLMRequests[event.Model]++
	t.metrics.LLMTokensUsed[event.Model] += tokens

	requests := t.metrics.LLMRequests[event.Model]
	if requests == 1 {
		t.metrics.LLMAverageLatency[event.Model] = event.Duration
	} else {
		total := t.metrics.LLMAverageLatency[event.Model] * time.Duration(requests-1)
		t.metrics.LLMAverageLatency[event.Model] = (total + event.Duration) / time.Duration(requests)
	}

	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += tokens
	t.costTracker.ModelCosts[event.Model] += event.Cost
	t.costTracker.DailyCosts[event.StartTime.Format("2006-01-02")] += event.Cost

	observeLLM(event)

	t.logger.Printf("LLM Event: Model=%s, Success=%t, Duration=%v, Tokens=%d, Cost=$%.4f",
		event.Model, event.Success, event.Duration, tokens, event.Cost)
}

// GetMetrics returns a snapshot of the current metrics.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.StageExecutions = make(map[string]int64)
	metrics.StageFailures = make(map[string]int64)
	metrics.StageAverageTimes = make(map[string]time.Duration)
	metrics.WasteTypeCounts = make(map[string]int64)
	metrics.LLMRequests = make(map[string]int64)
	metrics.LLMTokensUsed = make(map[string]int64)
	metrics.LLMAverageLatency = make(map[string]time.Duration)

	for k, v := range t.metrics.StageExecutions {
		metrics.StageExecutions[k] = v
	}
	for k, v := range t.metrics.StageFailures {
		metrics.StageFailures[k] = v
	}
	for k, v := range t.metrics.StageAverageTimes {
		metrics.StageAverageTimes[k] = v
	}
	for k, v := range t.metrics.WasteTypeCounts {
		metrics.WasteTypeCounts[k] = v
	}
	for k, v := range t.metrics.LLMRequests {
		metrics.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		metrics.LLMTokensUsed[k] = v
	}
	for k, v := range t.metrics.LLMAverageLatency {
		metrics.LLMAverageLatency[k] = v
	}

	return metrics
}

// GetCostSummary returns a snapshot of accumulated LLM costs.
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		DailyCosts:  make(map[string]float64),
		ModelCosts:  make(map[string]float64),
	}

	for k, v := range t.costTracker.DailyCosts {
		summary.DailyCosts[k] = v
	}
	for k, v := range t.costTracker.ModelCosts {
		summary.ModelCosts[k] = v
	}

	return summary
}

// CostSummary provides a summary of LLM costs.
type CostSummary struct {
	TotalCost   float64
	TotalTokens int64
	DailyCosts  map[string]float64
	ModelCosts  map[string]float64
}

// startMetricsCollection logs a metrics snapshot every minute.
func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		costs := t.GetCostSummary()

		t.logger.Printf("Metrics Snapshot: Queries=%d/%d, AvgTime=%v, TotalCost=$%.4f, TotalTokens=%d",
			metrics.SuccessfulQueries, metrics.TotalQueries,
			metrics.AverageProcessingTime, costs.TotalCost, costs.TotalTokens)
	}
}

// startCostReporting logs the cost breakdown every ten minutes.
func (t *Telemetry) startCostReporting() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		costs := t.GetCostSummary()

		t.logger.Printf("Cost Report: Total=$%.4f, Tokens=%d", costs.TotalCost, costs.TotalTokens)

		for model, cost := range costs.ModelCosts {
			t.logger.Printf("  Model %s: $%.4f", model, cost)
		}
	}
}

// Shutdown logs the final report.
func (t *Telemetry) Shutdown() {
	t.logger.Println("Shutting down telemetry system...")

	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	t.logger.Printf("Final Report:")
	t.logger.Printf("  Total Queries: %d", metrics.TotalQueries)
	if metrics.TotalQueries > 0 {
		t.logger.Printf("  Success Rate: %.2f%%", float64(metrics.SuccessfulQueries)/float64(metrics.TotalQueries)*100)
	}
	t.logger.Printf("  Average Processing Time: %v", metrics.AverageProcessingTime)
	t.logger.Printf("  Total Cost: $%.4f", costs.TotalCost)
	t.logger.Printf("  Total Tokens: %d", costs.TotalTokens)
}

// CalculateCost converts token usage into dollars for a model.
func (t *Telemetry) CalculateCost(inputTokens, outputTokens int64, modelName string, costPer1KInput, costPer1KOutput float64) float64 {
	inputCost := float64(inputTokens) / 1000.0 * costPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * costPer1KOutput
	return inputCost + outputCost
}

// GetPerformanceReport returns a human-readable performance summary.
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	successPct := 0.0
	failedPct := 0.0
	if metrics.TotalQueries > 0 {
		successPct = float64(metrics.SuccessfulQueries) / float64(metrics.TotalQueries) * 100
		failedPct = float64(metrics.FailedQueries) / float64(metrics.TotalQueries) * 100
	}

	report := fmt.Sprintf(`
=== PERFORMANCE REPORT ===
Overall Metrics:
  Total Queries: %d
  Successful: %d (%.2f%%)
  Failed: %d (%.2f%%)
  Average Processing Time: %v
  Total Cost: $%.4f
  Total Tokens: %d

Stage Performance:
`, metrics.TotalQueries, metrics.SuccessfulQueries, successPct,
		metrics.FailedQueries, failedPct,
		metrics.AverageProcessingTime, costs.TotalCost, costs.TotalTokens)

	for stage, executions := range metrics.StageExecutions {
		failures := metrics.StageFailures[stage]
		avgTime := metrics.StageAverageTimes[stage]
		report += fmt.Sprintf("  %s: %d executions, %d failures, %v avg time\n",
			stage, executions, failures, avgTime)
	}

	report += "\nWaste Types:\n"
	for wt, count := range metrics.WasteTypeCounts {
		report += fmt.Sprintf("  %s: %d queries\n", wt, count)
	}

	report += "\nLLM Usage:\n"
	for model, requests := range metrics.LLMRequests {
		tokens := metrics.LLMTokensUsed[model]
		cost := costs.ModelCosts[model]
		report += fmt.Sprintf("  %s: %d requests, %d tokens, $%.4f\n",
			model, requests, tokens, cost)
	}

	return report
}
