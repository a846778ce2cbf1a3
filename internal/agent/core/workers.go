package core

import (
	"context"
	"fmt"
	"log"
	"time"
)

// stageWorkers executes the individual workflow stages. Every stage is
// fault tolerant: when a collaborator fails, the stage writes a policy
// fallback into the state and records the error, so the workflow always
// makes progress. The returned error is advisory, for telemetry and
// tracing, and never stops the run.
type stageWorkers struct {
	classifier Classifier
	locator    Locator
	regs       RegulationSource
	finder     FacilityFinder
	synth      *ResponseSynthesizer

	stageTimeout time.Duration
	radiusKm     float64
	defaultLoc   Location
	logger       *log.Logger
}

func newStageWorkers(
	classifier Classifier,
	locator Locator,
	regs RegulationSource,
	finder FacilityFinder,
	synth *ResponseSynthesizer,
	stageTimeout time.Duration,
	radiusKm float64,
	defaultLoc Location,
	logger *log.Logger,
) *stageWorkers {
	return &stageWorkers{
		classifier:   classifier,
		locator:      locator,
		regs:         regs,
		finder:       finder,
		synth:        synth,
		stageTimeout: stageTimeout,
		radiusKm:     radiusKm,
		defaultLoc:   defaultLoc,
		logger:       logger,
	}
}

func (w *stageWorkers) classifyWaste(ctx context.Context, state *WorkflowState) error {
	cctx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	defer cancel()

	wt, cls, err := w.classifier.Classify(cctx, state.Query)
	if err != nil {
		w.logger.Printf("waste classification failed: %v", err)
		state.WasteType = WasteHousehold
		state.Classification = &Classification{Confidence: 0.1, HazardLevel: HazardLow}
		state.recordError(fmt.Sprintf("Classification error: %v", err))
		return fmt.Errorf("failed to classify waste: %w", err)
	}
	state.WasteType = wt
	state.Classification = &cls
	w.logger.Printf("waste classified as %s (confidence %.2f)", wt, cls.Confidence)
	return nil
}

func (w *stageWorkers) getLocation(ctx context.Context, state *WorkflowState) error {
	cctx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	defer cancel()

	loc, err := w.locator.Resolve(cctx, state.LocationHint)
	if err != nil {
		w.logger.Printf("location detection failed: %v", err)
		fallback := w.defaultLoc
		state.Location = &fallback
		state.recordError(fmt.Sprintf("Location error: %v", err))
		return fmt.Errorf("failed to resolve location: %w", err)
	}
	state.Location = &loc
	w.logger.Printf("location determined: %s, %s", loc.City, loc.State)
	return nil
}

func (w *stageWorkers) lookupRegulations(ctx context.Context, state *WorkflowState) error {
	cctx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	defer cancel()

	loc := Location{}
	if state.Location != nil {
		loc = *state.Location
	}
	wt := state.WasteType
	if wt == "" {
		wt = WasteHousehold
	}

	reg, err := w.regs.Lookup(cctx, loc, wt)
	if err != nil {
		w.logger.Printf("regulation lookup failed: %v", err)
		state.Regulation = &Regulation{
			Jurisdiction: "General Guidelines",
			Rules:        "Please check with local waste management authorities.",
		}
		state.recordError(fmt.Sprintf("Regulation error: %v", err))
		return fmt.Errorf("failed to look up regulations: %w", err)
	}
	state.Regulation = &reg
	w.logger.Printf("regulations found: %s", reg.Jurisdiction)
	return nil
}

func (w *stageWorkers) findLocations(ctx context.Context, state *WorkflowState) error {
	cctx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	defer cancel()

	loc := Location{}
	if state.Location != nil {
		loc = *state.Location
	}
	wt := state.WasteType
	if wt == "" {
		wt = WasteHousehold
	}

	facilities, err := w.finder.Find(cctx, loc, wt, w.radiusKm)
	if err != nil {
		w.logger.Printf("location finding failed: %v", err)
		state.Facilities = []Facility{}
		state.recordError(fmt.Sprintf("Location finder error: %v", err))
		return fmt.Errorf("failed to find disposal locations: %w", err)
	}
	if facilities == nil {
		facilities = []Facility{}
	}
	state.Facilities = facilities
	w.logger.Printf("found %d disposal locations", len(facilities))
	return nil
}

func (w *stageWorkers) generateResponse(ctx context.Context, state *WorkflowState) error {
	cctx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	defer cancel()

	out, err := w.synth.Synthesize(cctx, state)
	if err != nil {
		state.recordError(fmt.Sprintf("Response generation error: %v", err))
		out = w.synth.Fallback(state)
	}
	state.FinalResponse = out
	return nil
}
