package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NabidKabir/kura-final-project/config"
	"github.com/NabidKabir/kura-final-project/internal/agent/telemetry"
)

// apologyResponse is returned whenever the workflow cannot produce a real
// answer: a recovered panic, cancellation, or hitting the iteration cap.
const apologyResponse = "Sorry, I encountered an error processing your request. Please try again or contact local waste management services."

var workflowTracer trace.Tracer = otel.Tracer("kura/internal/agent/orchestrator")

// Orchestrator drives the disposal guidance workflow. Each iteration the
// router inspects the state, picks the next stage, and a worker executes
// it; the loop ends when the final response is set or the iteration cap
// is reached. Worker failures degrade to fallbacks, so the only hard
// failure modes are cancellation and the cap.
type Orchestrator struct {
	config    *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	workers     *stageWorkers
	llmProvider LLMProvider

	// Processing state
	processing map[string]*queryRun
	mu         sync.RWMutex

	// Concurrency control
	semaphore chan struct{}
}

type queryRun struct {
	status *QueryStatus
	cancel context.CancelFunc
}

// NewOrchestrator builds the orchestrator and its collaborator set from
// configuration.
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tel *telemetry.Telemetry) (*Orchestrator, error) {
	llm, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	classifier, locator, regs, finder, err := NewCollaborators(cfg, llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create collaborators: %w", err)
	}

	return NewOrchestratorWith(cfg, logger, tel, llm, classifier, locator, regs, finder), nil
}

// NewOrchestratorWith assembles an orchestrator around explicit
// collaborators. Callers that need to share a collaborator with other
// components, or substitute one, use this instead of NewOrchestrator.
func NewOrchestratorWith(cfg *config.Config, logger *log.Logger, tel *telemetry.Telemetry, llm LLMProvider, classifier Classifier, locator Locator, regs RegulationSource, finder FacilityFinder) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if llm != nil && tel != nil {
		llm = &instrumentedProvider{
			inner:           llm,
			tel:             tel,
			costPer1KInput:  cfg.LLM.CostPer1KInput,
			costPer1KOutput: cfg.LLM.CostPer1KOutput,
		}
	}

	workers := newStageWorkers(
		classifier, locator, regs, finder,
		NewSynthesizer(llm),
		cfg.Workflow.StageTimeout,
		cfg.Workflow.FacilityRadiusKm,
		configDefaultLocation(cfg.General),
		logger,
	)

	return &Orchestrator{
		config:      cfg,
		logger:      logger,
		telemetry:   tel,
		workers:     workers,
		llmProvider: llm,
		processing:  make(map[string]*queryRun),
		semaphore:   make(chan struct{}, cfg.Workflow.MaxConcurrent),
	}
}

// LLM exposes the orchestrator's underlying LLM provider. It is nil when
// generation is disabled.
func (o *Orchestrator) LLM() LLMProvider {
	return o.llmProvider
}

// ProcessQuery runs a disposal question through the full workflow and
// returns the result. The result is always usable: on failure it carries
// the apology response, the accumulated error chain, and whatever state
// the workflow had collected.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query, locationHint string) (WorkflowResult, error) {
	return o.ProcessQueryWithID(ctx, uuid.New().String(), query, locationHint)
}

// ProcessQueryWithID runs the workflow under a caller-chosen query ID.
// Async callers mint the ID up front so status polling and cancellation
// work while the query is still in flight.
func (o *Orchestrator) ProcessQueryWithID(ctx context.Context, id, query, locationHint string) (WorkflowResult, error) {
	startTime := time.Now()

	ctx, span := workflowTracer.Start(ctx, "workflow.process",
		trace.WithAttributes(
			attribute.String("query.id", id),
		))
	defer span.End()

	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	status := &QueryStatus{
		QueryID:     id,
		Status:      "pending",
		StartedAt:   time.Now(),
		LastUpdated: time.Now(),
	}

	o.mu.Lock()
	o.processing[id] = &queryRun{status: status, cancel: cancelRun}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.processing, id)
		o.mu.Unlock()
	}()

	// Acquire semaphore for concurrency control
	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	case <-ctx.Done():
		return o.failedResult(id, NewWorkflowState(query, locationHint), 0, startTime, ctx.Err()), ctx.Err()
	}

	o.logger.Printf("processing query %s: %q", id, truncate(query, 80))

	state := NewWorkflowState(query, locationHint)

	iterations, runErr := o.runStages(ctx, id, status, state)

	queryEvent := telemetry.QueryEvent{
		ID:         id,
		Query:      query,
		StartTime:  startTime,
		EndTime:    time.Now(),
		WasteType:  string(state.WasteType),
		Facilities: len(state.Facilities),
		Iterations: iterations,
		Success:    runErr == nil,
	}
	queryEvent.ProcessingTime = queryEvent.EndTime.Sub(queryEvent.StartTime)
	if runErr != nil {
		queryEvent.Error = runErr.Error()
	}
	if o.telemetry != nil {
		o.telemetry.RecordQueryEvent(ctx, queryEvent)
	}

	span.SetAttributes(
		attribute.String("waste.type", string(state.WasteType)),
		attribute.Bool("success", runErr == nil),
		attribute.Int("iterations", iterations),
	)

	if runErr != nil {
		o.updateStatus(status, "failed", state.LastStage, iterations)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		o.logger.Printf("query %s failed after %d iterations: %v", id, iterations, runErr)
		return o.failedResult(id, state, iterations, startTime, runErr), runErr
	}

	o.updateStatus(status, "completed", StageDone, iterations)
	span.SetStatus(codes.Ok, "completed")
	o.logger.Printf("query %s completed in %v (%d iterations)", id, time.Since(startTime), iterations)

	return WorkflowResult{
		ID:               id,
		Success:          true,
		Query:            query,
		WasteType:        state.WasteType,
		Location:         state.Location,
		FinalResponse:    state.FinalResponse,
		Classification:   state.Classification,
		Regulation:       state.Regulation,
		Facilities:       state.Facilities,
		ConfidenceScore:  stateConfidence(state),
		ProcessingTimeMS: time.Since(startTime).Milliseconds(),
		ErrorMessage:     state.ErrorMessage,
		Iterations:       iterations,
		CreatedAt:        startTime,
	}, nil
}

// runStages is the driver loop: route, dispatch, repeat. A recovered
// panic or cancellation surfaces as the returned error; worker errors do
// not, since workers degrade to fallbacks and the state keeps moving.
func (o *Orchestrator) runStages(ctx context.Context, id string, status *QueryStatus, state *WorkflowState) (iterations int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow panic: %v", r)
		}
	}()

	maxIterations := o.config.Workflow.MaxIterations
	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		stage := NextStage(state)
		if stage == StageDone {
			return i, nil
		}

		iterations = i + 1
		state.LastStage = stage
		o.updateStatus(status, "running", stage, iterations)

		// Stage errors are advisory: the worker already wrote the
		// fallback into the state and recorded the message.
		_ = o.runStage(ctx, id, stage, state)
	}

	if state.FinalResponse == "" {
		return iterations, fmt.Errorf("workflow did not complete within %d iterations", maxIterations)
	}
	return iterations, nil
}

func (o *Orchestrator) runStage(ctx context.Context, id string, stage Stage, state *WorkflowState) error {
	stageCtx, span := workflowTracer.Start(ctx, "workflow."+string(stage),
		trace.WithAttributes(attribute.String("stage", string(stage))))
	defer span.End()

	start := time.Now()
	var err error
	switch stage {
	case StageClassifyWaste:
		err = o.workers.classifyWaste(stageCtx, state)
	case StageGetLocation:
		err = o.workers.getLocation(stageCtx, state)
	case StageLookupRegulations:
		err = o.workers.lookupRegulations(stageCtx, state)
	case StageFindLocations:
		err = o.workers.findLocations(stageCtx, state)
	case StageGenerateResponse:
		err = o.workers.generateResponse(stageCtx, state)
	default:
		err = fmt.Errorf("unknown workflow stage: %s", stage)
	}

	if o.telemetry != nil {
		o.telemetry.RecordStageEvent(ctx, telemetry.StageEvent{
			QueryID:   id,
			Stage:     string(stage),
			StartTime: start,
			EndTime:   time.Now(),
			Duration:  time.Since(start),
			Success:   err == nil,
			Error:     errString(err),
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "completed")
	return nil
}

// failedResult builds the degraded result for any hard failure. Whatever
// the workflow collected before failing is kept alongside the apology.
func (o *Orchestrator) failedResult(id string, state *WorkflowState, iterations int, startTime time.Time, runErr error) WorkflowResult {
	state.recordError(runErr.Error())
	return WorkflowResult{
		ID:               id,
		Success:          false,
		Query:            state.Query,
		WasteType:        state.WasteType,
		Location:         state.Location,
		FinalResponse:    apologyResponse,
		Classification:   state.Classification,
		Regulation:       state.Regulation,
		Facilities:       state.Facilities,
		ConfidenceScore:  stateConfidence(state),
		ProcessingTimeMS: time.Since(startTime).Milliseconds(),
		ErrorMessage:     state.ErrorMessage,
		Iterations:       iterations,
		CreatedAt:        startTime,
	}
}

// updateStatus updates the processing status for a running query.
func (o *Orchestrator) updateStatus(status *QueryStatus, newStatus string, stage Stage, iterations int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	status.Status = newStatus
	status.Stage = stage
	status.Iterations = iterations
	status.LastUpdated = time.Now()
}

// GetStatus returns the current status of a running query.
func (o *Orchestrator) GetStatus(queryID string) (QueryStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	run, exists := o.processing[queryID]
	if !exists {
		return QueryStatus{}, fmt.Errorf("query not found: %s", queryID)
	}

	return *run.status, nil
}

// Cancel stops a running query. The workflow notices between stages and
// returns the partial result with the apology response.
func (o *Orchestrator) Cancel(queryID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, exists := o.processing[queryID]
	if !exists {
		return fmt.Errorf("query not found: %s", queryID)
	}

	run.cancel()
	run.status.Status = "cancelling"
	run.status.LastUpdated = time.Now()

	return nil
}

// GetPerformanceMetrics returns aggregated workflow metrics.
func (o *Orchestrator) GetPerformanceMetrics() map[string]interface{} {
	if o.telemetry == nil {
		return map[string]interface{}{}
	}
	metrics := o.telemetry.GetMetrics()
	costs := o.telemetry.GetCostSummary()

	summaries := map[string]interface{}{}
	for stage, executions := range metrics.StageExecutions {
		summaries[stage] = map[string]interface{}{
			"executions": executions,
			"failures":   metrics.StageFailures[stage],
			"avg_time":   metrics.StageAverageTimes[stage].String(),
		}
	}

	return map[string]interface{}{
		"metrics": metrics,
		"costs":   costs,
		"stages":  summaries,
		"report":  o.telemetry.GetPerformanceReport(),
	}
}

func stateConfidence(state *WorkflowState) float64 {
	if state.Classification == nil {
		return 0
	}
	return state.Classification.Confidence
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// instrumentedProvider wraps an LLM provider so every call is recorded in
// telemetry with latency, token usage, and cost.
type instrumentedProvider struct {
	inner           LLMProvider
	tel             *telemetry.Telemetry
	costPer1KInput  float64
	costPer1KOutput float64
}

func (p *instrumentedProvider) Generate(ctx context.Context, system, user string) (string, error) {
	out, _, _, err := p.GenerateWithTokens(ctx, system, user)
	return out, err
}

func (p *instrumentedProvider) GenerateWithTokens(ctx context.Context, system, user string) (string, int64, int64, error) {
	start := time.Now()
	out, inputTokens, outputTokens, err := p.inner.GenerateWithTokens(ctx, system, user)

	event := telemetry.LLMEvent{
		Model:        p.inner.Model(),
		StartTime:    start,
		Duration:     time.Since(start),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Success:      err == nil,
		Error:        errString(err),
	}
	event.Cost = p.tel.CalculateCost(inputTokens, outputTokens, event.Model, p.costPer1KInput, p.costPer1KOutput)
	p.tel.RecordLLMEvent(ctx, event)

	return out, inputTokens, outputTokens, err
}

func (p *instrumentedProvider) Model() string {
	return p.inner.Model()
}
