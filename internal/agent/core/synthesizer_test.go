package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func synthState() *WorkflowState {
	return &WorkflowState{
		Query:     "how do I get rid of an old laptop",
		WasteType: WasteEWaste,
		Location:  &Location{City: "New York", State: "NY"},
		Regulation: &Regulation{
			Jurisdiction: "New York State",
			Rules:        "Electronic waste is banned from landfills.",
			PreparationSteps: []string{
				"Remove all personal data from devices",
				"Remove batteries if possible",
				"Keep original packaging if available",
				"Do not attempt to disassemble devices",
			},
		},
		Facilities: []Facility{
			{Name: "Best Buy Electronics Recycling", Address: "622 Broadway", DistanceKm: 2.1, Phone: "(212) 614-1000", SpecialInstructions: "Limit 3 items per day."},
			{Name: "NYC Department of Sanitation Special Waste Drop-Off", Address: "1550 2nd Ave", DistanceKm: 1.8},
			{Name: "CVS Pharmacy - Drug Take Back", Address: "1619 Broadway", DistanceKm: 1.2},
			{Name: "Big Apple Recycling", Address: "2132 Atlantic Ave", DistanceKm: 8.7},
		},
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	s := NewSynthesizer(nil)
	state := synthState()

	first := s.Fallback(state)
	second := s.Fallback(state)
	if first != second {
		t.Fatal("fallback output changed between calls on the same state")
	}
	if !strings.Contains(first, "**Next Steps:**") {
		t.Fatal("fallback missing next steps section")
	}
	if !strings.Contains(first, "4. Transport your waste safely to the disposal location") {
		t.Fatal("fallback missing final next step")
	}
}

func TestFallbackHeaderAndClassification(t *testing.T) {
	s := NewSynthesizer(nil)
	out := s.Fallback(synthState())

	if !strings.HasPrefix(out, "## E-Waste Disposal Guidance for New York, NY") {
		t.Fatalf("unexpected header: %q", firstLine(out))
	}
	if !strings.Contains(out, "**Waste Classification:** Your waste has been classified as e-waste.") {
		t.Fatal("missing classification line")
	}
}

func TestFallbackRegulationSection(t *testing.T) {
	s := NewSynthesizer(nil)
	out := s.Fallback(synthState())

	if !strings.Contains(out, "**Local Regulations:** (New York State)") {
		t.Fatal("missing jurisdiction label")
	}
	if !strings.Contains(out, "• Electronic waste is banned from landfills.") {
		t.Fatal("missing rules bullet")
	}
	if !strings.Contains(out, "• Keep original packaging if available") {
		t.Fatal("expected third preparation step")
	}
	if strings.Contains(out, "Do not attempt to disassemble devices") {
		t.Fatal("preparation steps should be capped at three")
	}
}

func TestFallbackFacilityListCappedAtThree(t *testing.T) {
	s := NewSynthesizer(nil)
	out := s.Fallback(synthState())

	if !strings.Contains(out, "1. **Best Buy Electronics Recycling** - 622 Broadway (2.1km)") {
		t.Fatalf("missing first facility line in:\n%s", out)
	}
	if !strings.Contains(out, "   Phone: (212) 614-1000") {
		t.Fatal("missing facility phone line")
	}
	if !strings.Contains(out, "   Note: Limit 3 items per day.") {
		t.Fatal("missing facility note line")
	}
	if !strings.Contains(out, "3. **CVS Pharmacy - Drug Take Back**") {
		t.Fatal("expected third facility")
	}
	if strings.Contains(out, "Big Apple Recycling") {
		t.Fatal("facility list should be capped at three")
	}
}

func TestFallbackGenericOptionsWithoutFacilities(t *testing.T) {
	s := NewSynthesizer(nil)
	state := synthState()
	state.Facilities = nil

	out := s.Fallback(state)
	if !strings.Contains(out, "**Disposal Options:**") {
		t.Fatal("missing generic disposal options section")
	}
	if !strings.Contains(out, "• Contact your local waste management service") {
		t.Fatal("missing generic option bullet")
	}
	if strings.Contains(out, "**Disposal Locations Near You:**") {
		t.Fatal("facility section should be absent without facilities")
	}
}

func TestFallbackDefaultsForSparseState(t *testing.T) {
	s := NewSynthesizer(nil)
	out := s.Fallback(&WorkflowState{Query: "help"})

	if !strings.HasPrefix(out, "## Unknown Disposal Guidance for your area, your state") {
		t.Fatalf("unexpected header for sparse state: %q", firstLine(out))
	}
}

func TestSynthesizeWithoutProviderUsesFallback(t *testing.T) {
	s := NewSynthesizer(nil)
	state := synthState()

	out, err := s.Synthesize(context.Background(), state)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != s.Fallback(state) {
		t.Fatal("expected fallback output without a provider")
	}
}

func TestSynthesizeUsesProviderOutput(t *testing.T) {
	llm := &fakeLLM{response: "Take the laptop to a certified e-waste recycler."}
	s := NewSynthesizer(llm)

	out, err := s.Synthesize(context.Background(), synthState())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != llm.response {
		t.Fatalf("expected provider output verbatim, got %q", out)
	}
	if llm.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", llm.calls)
	}
}

func TestSynthesizeFallsBackOnProviderError(t *testing.T) {
	s := NewSynthesizer(&fakeLLM{err: errors.New("model overloaded")})
	state := synthState()

	out, err := s.Synthesize(context.Background(), state)
	if err != nil {
		t.Fatalf("provider errors must not surface: %v", err)
	}
	if out != s.Fallback(state) {
		t.Fatal("expected fallback output on provider error")
	}
}

func TestSynthesizeFallsBackOnEmptyProviderOutput(t *testing.T) {
	s := NewSynthesizer(&fakeLLM{response: "  \n\t"})
	state := synthState()

	out, err := s.Synthesize(context.Background(), state)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != s.Fallback(state) {
		t.Fatal("expected fallback output on blank provider output")
	}
}

func TestFormatKm(t *testing.T) {
	cases := map[float64]string{
		0:   "Unknown",
		2.1: "2.1",
		8:   "8",
	}
	for km, want := range cases {
		if got := formatKm(km); got != want {
			t.Errorf("formatKm(%v) = %q, want %q", km, got, want)
		}
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"e-waste":   "E-Waste",
		"household": "Household",
		"HAZARDOUS": "Hazardous",
		"new york":  "New York",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
