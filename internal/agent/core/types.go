package core

import (
	"context"
	"strings"
	"time"
)

// WasteType is the closed set of waste categories the assistant understands.
type WasteType string

const (
	WasteEWaste     WasteType = "e-waste"
	WasteMedical    WasteType = "medical"
	WasteHazardous  WasteType = "hazardous"
	WasteRecyclable WasteType = "recyclable"
	WasteOrganic    WasteType = "organic"
	WasteHousehold  WasteType = "household"
	WasteUnknown    WasteType = "unknown"
)

// AllWasteTypes lists every valid category, in prompt/display order.
var AllWasteTypes = []WasteType{
	WasteEWaste, WasteMedical, WasteHazardous,
	WasteRecyclable, WasteOrganic, WasteHousehold,
}

// Valid reports whether wt is one of the known categories.
func (wt WasteType) Valid() bool {
	switch wt {
	case WasteEWaste, WasteMedical, WasteHazardous, WasteRecyclable, WasteOrganic, WasteHousehold, WasteUnknown:
		return true
	}
	return false
}

// ParseWasteType normalizes free-form category strings (including common
// aliases like "electronic" or "e_waste") into a WasteType. Unrecognized
// input maps to WasteUnknown.
func ParseWasteType(s string) WasteType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e-waste", "e_waste", "ewaste", "electronic", "electronics":
		return WasteEWaste
	case "medical", "pharmaceutical", "sharps":
		return WasteMedical
	case "hazardous", "household_hazardous", "hhw":
		return WasteHazardous
	case "recyclable", "recycling", "recycle":
		return WasteRecyclable
	case "organic", "compost":
		return WasteOrganic
	case "household", "general", "trash", "garbage":
		return WasteHousehold
	}
	return WasteUnknown
}

// HazardLevel grades how dangerous a waste item is to handle.
type HazardLevel string

const (
	HazardLow      HazardLevel = "low"
	HazardMedium   HazardLevel = "medium"
	HazardHigh     HazardLevel = "high"
	HazardCritical HazardLevel = "critical"
)

// ParseHazardLevel maps a free-form string onto a HazardLevel, defaulting
// to HazardLow for anything unrecognized.
func ParseHazardLevel(s string) HazardLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return HazardLow
	case "medium", "moderate":
		return HazardMedium
	case "high":
		return HazardHigh
	case "critical", "severe":
		return HazardCritical
	}
	return HazardLow
}

// Stage names one step of the disposal workflow. The router only ever
// returns one of the constants below, so driver dispatch can switch
// exhaustively.
type Stage string

const (
	StageClassifyWaste     Stage = "classify_waste"
	StageGetLocation       Stage = "get_location"
	StageLookupRegulations Stage = "lookup_regulations"
	StageFindLocations     Stage = "find_locations"
	StageGenerateResponse  Stage = "generate_response"
	StageDone              Stage = "done"
)

// Location is a resolved user location. Latitude/Longitude are only
// meaningful when HasCoords is true.
type Location struct {
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	ZipCode   string  `json:"zipcode,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	HasCoords bool    `json:"-"`
}

// Classification carries the detail behind a waste-type decision.
type Classification struct {
	SubType           string      `json:"sub_type,omitempty"`
	Confidence        float64     `json:"confidence"` // 0.0 to 1.0
	HazardLevel       HazardLevel `json:"hazard_level"`
	SpecialHandling   bool        `json:"special_handling_required"`
	Explanation       string      `json:"reasoning,omitempty"`
	PreparationNeeded []string    `json:"preparation_needed,omitempty"`
}

// Regulation describes the disposal rules that apply to one waste type in
// one jurisdiction.
type Regulation struct {
	Jurisdiction     string   `json:"jurisdiction"`
	Rules            string   `json:"rules"`
	PreparationSteps []string `json:"preparation_steps,omitempty"`
	Restrictions     []string `json:"restrictions,omitempty"`
	Penalties        string   `json:"penalties,omitempty"`
	DisposalMethods  []string `json:"disposal_methods,omitempty"`
	SourceURL        string   `json:"source_url,omitempty"`
	LastUpdated      string   `json:"last_updated,omitempty"`
	Note             string   `json:"note,omitempty"`
}

// Facility is one disposal location a user can bring waste to.
type Facility struct {
	Name                string      `json:"name"`
	Address             string      `json:"address"`
	Phone               string      `json:"phone,omitempty"`
	Website             string      `json:"website,omitempty"`
	DistanceKm          float64     `json:"distance_km,omitempty"`
	AcceptedWasteTypes  []WasteType `json:"accepted_waste_types"`
	Hours               []string    `json:"hours,omitempty"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	Rating              float64     `json:"rating,omitempty"` // 0.0 to 5.0
	Latitude            float64     `json:"latitude,omitempty"`
	Longitude           float64     `json:"longitude,omitempty"`
}

// Accepts reports whether the facility takes the given waste type.
func (f Facility) Accepts(wt WasteType) bool {
	for _, t := range f.AcceptedWasteTypes {
		if t == wt {
			return true
		}
	}
	return false
}

// WorkflowState is the single mutable record threaded through one query's
// pipeline. Each field is written by exactly one stage and never cleared
// afterwards. A nil Facilities slice means the finder has not run yet; an
// empty non-nil slice is a legitimate zero-result search.
type WorkflowState struct {
	Query          string          `json:"query"`
	LocationHint   string          `json:"location_hint,omitempty"`
	WasteType      WasteType       `json:"waste_type,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Location       *Location       `json:"location,omitempty"`
	Regulation     *Regulation     `json:"regulation,omitempty"`
	Facilities     []Facility      `json:"facilities,omitempty"`
	FinalResponse  string          `json:"final_response,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	LastStage      Stage           `json:"last_stage,omitempty"`
}

// NewWorkflowState creates the initial state for a query.
func NewWorkflowState(query, locationHint string) *WorkflowState {
	return &WorkflowState{Query: query, LocationHint: locationHint}
}

// recordError appends a stage error to the state without failing the
// workflow. Earlier errors are preserved so the caller sees the full chain.
func (s *WorkflowState) recordError(msg string) {
	if s.ErrorMessage == "" {
		s.ErrorMessage = msg
		return
	}
	s.ErrorMessage += "; " + msg
}

// WorkflowResult is the shape returned to every caller of the workflow,
// complete even when individual stages degraded to fallbacks.
type WorkflowResult struct {
	ID               string          `json:"id"`
	Success          bool            `json:"success"`
	Query            string          `json:"user_query"`
	WasteType        WasteType       `json:"waste_type,omitempty"`
	Location         *Location       `json:"user_location,omitempty"`
	FinalResponse    string          `json:"final_response"`
	Classification   *Classification `json:"waste_classification,omitempty"`
	Regulation       *Regulation     `json:"local_regulations,omitempty"`
	Facilities       []Facility      `json:"disposal_locations"`
	ConfidenceScore  float64         `json:"confidence_score"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Iterations       int             `json:"iterations"`
	CreatedAt        time.Time       `json:"created_at"`
}

// QueryStatus tracks an in-flight query for the status endpoint.
type QueryStatus struct {
	QueryID     string    `json:"query_id"`
	Status      string    `json:"status"` // pending, running, completed, failed
	Stage       Stage     `json:"stage,omitempty"`
	Iterations  int       `json:"iterations"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Classifier decides what category of waste a free-text description is.
type Classifier interface {
	// Classify inspects a description and returns the category plus detail.
	Classify(ctx context.Context, description string) (WasteType, Classification, error)
}

// Locator resolves a location hint (zip code, "lat,lng", "City, ST", or
// empty for auto-detection) into a Location.
type Locator interface {
	Resolve(ctx context.Context, hint string) (Location, error)
}

// RegulationSource looks up the disposal rules for a waste type in the
// user's jurisdiction.
type RegulationSource interface {
	Lookup(ctx context.Context, loc Location, wt WasteType) (Regulation, error)
}

// FacilityFinder searches for disposal facilities near a location.
type FacilityFinder interface {
	Find(ctx context.Context, loc Location, wt WasteType, radiusKm float64) ([]Facility, error)
}

// LLMProvider is the contract for text-generation backends. Implementations
// must be safe for concurrent use.
type LLMProvider interface {
	// Generate produces a completion for the given system and user prompts.
	Generate(ctx context.Context, system, user string) (string, error)

	// GenerateWithTokens produces a completion and reports prompt and
	// completion token counts.
	GenerateWithTokens(ctx context.Context, system, user string) (string, int64, int64, error)

	// Model returns the configured model identifier.
	Model() string
}
