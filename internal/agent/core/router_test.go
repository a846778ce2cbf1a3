package core

import "testing"

func TestNextStagePrecedence(t *testing.T) {
	loc := &Location{City: "New York", State: "NY"}
	reg := &Regulation{Jurisdiction: "New York State"}

	cases := []struct {
		name  string
		state *WorkflowState
		want  Stage
	}{
		{
			"fresh state classifies first",
			&WorkflowState{Query: "old battery"},
			StageClassifyWaste,
		},
		{
			"classified state resolves location",
			&WorkflowState{WasteType: WasteEWaste},
			StageGetLocation,
		},
		{
			"located state looks up regulations",
			&WorkflowState{WasteType: WasteEWaste, Location: loc},
			StageLookupRegulations,
		},
		{
			"regulated state finds facilities",
			&WorkflowState{WasteType: WasteEWaste, Location: loc, Regulation: reg},
			StageFindLocations,
		},
		{
			"empty facility result still advances",
			&WorkflowState{WasteType: WasteEWaste, Location: loc, Regulation: reg, Facilities: []Facility{}},
			StageGenerateResponse,
		},
		{
			"response set means done",
			&WorkflowState{WasteType: WasteEWaste, Location: loc, Regulation: reg, Facilities: []Facility{}, FinalResponse: "done"},
			StageDone,
		},
		{
			"classification outranks everything downstream",
			&WorkflowState{Location: loc, Regulation: reg, Facilities: []Facility{}, FinalResponse: "done"},
			StageClassifyWaste,
		},
		{
			"location outranks regulations",
			&WorkflowState{WasteType: WasteHousehold, Regulation: reg},
			StageGetLocation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextStage(tc.state); got != tc.want {
				t.Fatalf("NextStage = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNextStageIsPure(t *testing.T) {
	state := &WorkflowState{WasteType: WasteMedical, Location: &Location{City: "Chicago", State: "IL"}}
	first := NextStage(state)
	for i := 0; i < 5; i++ {
		if got := NextStage(state); got != first {
			t.Fatalf("NextStage changed answer on call %d: %s != %s", i, got, first)
		}
	}
	if state.Regulation != nil || state.Facilities != nil || state.FinalResponse != "" {
		t.Fatal("NextStage mutated the state")
	}
}

func TestNextStageNilVersusEmptyFacilities(t *testing.T) {
	state := &WorkflowState{
		WasteType:  WasteEWaste,
		Location:   &Location{City: "New York", State: "NY"},
		Regulation: &Regulation{},
	}
	if got := NextStage(state); got != StageFindLocations {
		t.Fatalf("nil facilities should route to find_locations, got %s", got)
	}
	state.Facilities = []Facility{}
	if got := NextStage(state); got != StageGenerateResponse {
		t.Fatalf("empty facilities should route to generate_response, got %s", got)
	}
}
