package core

// NextStage decides which stage should run next for the given state. It is
// a pure function: same state in, same stage out, no side effects.
//
// The precedence order encodes the pipeline's data dependencies. Each
// predicate checks whether the owning stage has produced a value yet, so a
// stage whose collaborator failed but wrote its fallback still counts as
// complete and the workflow keeps moving forward. Facilities are special:
// an empty non-nil slice means the finder ran and found nothing, which is
// a terminal value, not a reason to run the finder again.
func NextStage(s *WorkflowState) Stage {
	switch {
	case s.WasteType == "":
		return StageClassifyWaste
	case s.Location == nil:
		return StageGetLocation
	case s.Regulation == nil:
		return StageLookupRegulations
	case s.Facilities == nil:
		return StageFindLocations
	case s.FinalResponse == "":
		return StageGenerateResponse
	default:
		return StageDone
	}
}
