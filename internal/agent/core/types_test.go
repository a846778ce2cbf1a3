package core

import "testing"

func TestParseWasteType(t *testing.T) {
	cases := []struct {
		in   string
		want WasteType
	}{
		{"e-waste", WasteEWaste},
		{"E_WASTE", WasteEWaste},
		{"electronics", WasteEWaste},
		{"pharmaceutical", WasteMedical},
		{"sharps", WasteMedical},
		{"hhw", WasteHazardous},
		{"Recycling", WasteRecyclable},
		{"compost", WasteOrganic},
		{"  garbage  ", WasteHousehold},
		{"trash", WasteHousehold},
		{"plutonium", WasteUnknown},
		{"", WasteUnknown},
	}
	for _, tc := range cases {
		if got := ParseWasteType(tc.in); got != tc.want {
			t.Fatalf("ParseWasteType(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseHazardLevel(t *testing.T) {
	cases := []struct {
		in   string
		want HazardLevel
	}{
		{"low", HazardLow},
		{"moderate", HazardMedium},
		{"HIGH", HazardHigh},
		{"severe", HazardCritical},
		{"???", HazardLow},
	}
	for _, tc := range cases {
		if got := ParseHazardLevel(tc.in); got != tc.want {
			t.Fatalf("ParseHazardLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFacilityAccepts(t *testing.T) {
	f := Facility{AcceptedWasteTypes: []WasteType{WasteEWaste, WasteHazardous}}
	if !f.Accepts(WasteEWaste) {
		t.Fatal("expected facility to accept e-waste")
	}
	if f.Accepts(WasteMedical) {
		t.Fatal("did not expect facility to accept medical waste")
	}
	if (Facility{}).Accepts(WasteHousehold) {
		t.Fatal("empty facility should accept nothing")
	}
}

func TestRecordErrorChains(t *testing.T) {
	s := NewWorkflowState("q", "")
	s.recordError("first")
	if s.ErrorMessage != "first" {
		t.Fatalf("got %q", s.ErrorMessage)
	}
	s.recordError("second")
	if s.ErrorMessage != "first; second" {
		t.Fatalf("expected chained errors, got %q", s.ErrorMessage)
	}
}

func TestWasteTypeValid(t *testing.T) {
	for _, wt := range AllWasteTypes {
		if !wt.Valid() {
			t.Fatalf("%s should be valid", wt)
		}
	}
	if !WasteUnknown.Valid() {
		t.Fatal("unknown is a known sentinel and counts as valid")
	}
	if WasteType("radioactive").Valid() {
		t.Fatal("arbitrary strings are not valid waste types")
	}
}
