package advisory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/NabidKabir/kura-final-project/config"
	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/store"
)

type stubFetcher struct {
	pages map[string]Page
	err   error
}

func (s stubFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if s.err != nil {
		return Page{}, s.err
	}
	page, ok := s.pages[url]
	if !ok {
		return Page{}, fmt.Errorf("no page for %s", url)
	}
	return page, nil
}

type stubStore struct {
	upserted []store.AdvisoryRecord
	stored   []store.AdvisoryRecord
	err      error
}

func (s *stubStore) UpsertAdvisory(ctx context.Context, rec store.AdvisoryRecord) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, rec)
	return nil
}

func (s *stubStore) ListAdvisories(ctx context.Context, state string, wasteTypes []string) ([]store.AdvisoryRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []store.AdvisoryRecord
	for _, rec := range s.stored {
		if rec.State == state {
			out = append(out, rec)
		}
	}
	return out, nil
}

func advisoryConfig() config.AdvisoryConfig {
	cfg := config.AdvisoryConfig{
		Enabled: true,
		Timeout: 5 * time.Second,
		Sources: []config.AdvisorySourceConfig{
			{State: "NY", WasteType: "e-waste", URL: "https://dec.ny.gov/e-waste"},
			{State: "CA", WasteType: "hazardous", URL: "https://dtsc.ca.gov/hhw"},
		},
		Policy: config.FetchPolicyConfig{Allow: []string{"dec.ny.gov", "dtsc.ca.gov"}},
	}
	return cfg.Normalize()
}

func TestRefreshUpsertsAdvisories(t *testing.T) {
	cfg := advisoryConfig()
	st := &stubStore{}
	table := core.NewRegulationTable("NY")
	fetcher := stubFetcher{pages: map[string]Page{
		"https://dec.ny.gov/e-waste": {Title: "Electronic Waste Recycling", Text: "Covered devices are banned from landfills."},
		"https://dtsc.ca.gov/hhw":    {Title: "Household Hazardous Waste", Text: "Take HHW to a collection facility."},
	}}

	r := NewRefresherWith(cfg, st, table, fetcher)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if len(st.upserted) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(st.upserted))
	}
	if st.upserted[0].State != "NY" || st.upserted[0].Title != "Electronic Waste Recycling" {
		t.Fatalf("unexpected first record: %+v", st.upserted[0])
	}

	reg, err := table.Lookup(context.Background(), core.Location{State: "NY"}, core.WasteEWaste)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !strings.Contains(reg.Note, "Recent advisory: Electronic Waste Recycling") {
		t.Fatalf("expected advisory note on regulation, got %q", reg.Note)
	}
}

func TestRefreshHonorsFetchPolicy(t *testing.T) {
	cfg := advisoryConfig()
	cfg.Policy = config.FetchPolicyConfig{Disallow: []string{"dtsc.ca.gov"}}.Normalize()
	st := &stubStore{}
	table := core.NewRegulationTable("NY")
	fetcher := stubFetcher{pages: map[string]Page{
		"https://dec.ny.gov/e-waste": {Title: "Electronic Waste Recycling", Text: "Banned from landfills."},
		"https://dtsc.ca.gov/hhw":    {Title: "Household Hazardous Waste", Text: "Collection facility."},
	}}

	r := NewRefresherWith(cfg, st, table, fetcher)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if len(st.upserted) != 1 {
		t.Fatalf("expected 1 upsert after policy skip, got %d", len(st.upserted))
	}
	if st.upserted[0].State != "NY" {
		t.Fatalf("expected NY record to survive, got %+v", st.upserted[0])
	}
}

func TestRefreshAllSourcesFailed(t *testing.T) {
	cfg := advisoryConfig()
	st := &stubStore{}
	table := core.NewRegulationTable("NY")
	r := NewRefresherWith(cfg, st, table, stubFetcher{err: fmt.Errorf("network down")})

	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected error when every source fails")
	}
	if len(st.upserted) != 0 {
		t.Fatalf("expected no upserts, got %d", len(st.upserted))
	}
}

func TestRefreshNoSources(t *testing.T) {
	cfg := config.AdvisoryConfig{}.Normalize()
	table := core.NewRegulationTable("NY")
	r := NewRefresherWith(cfg, &stubStore{}, table, stubFetcher{})

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("expected nil error with no sources, got %v", err)
	}
}

func TestRefreshTitleFallsBackToHost(t *testing.T) {
	cfg := advisoryConfig()
	cfg.Sources = cfg.Sources[:1]
	st := &stubStore{}
	table := core.NewRegulationTable("NY")
	fetcher := stubFetcher{pages: map[string]Page{
		"https://dec.ny.gov/e-waste": {Title: "", Text: "Some text."},
	}}

	r := NewRefresherWith(cfg, st, table, fetcher)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if st.upserted[0].Title != "dec.ny.gov" {
		t.Fatalf("expected host fallback title, got %q", st.upserted[0].Title)
	}
}

func TestPrimeLoadsStoredAdvisories(t *testing.T) {
	cfg := advisoryConfig()
	st := &stubStore{stored: []store.AdvisoryRecord{
		{State: "NY", WasteType: "e-waste", Title: "Stored Advisory", URL: "https://dec.ny.gov/e-waste"},
	}}
	table := core.NewRegulationTable("NY")

	r := NewRefresherWith(cfg, st, table, stubFetcher{})
	if err := r.Prime(context.Background()); err != nil {
		t.Fatalf("Prime returned error: %v", err)
	}

	reg, err := table.Lookup(context.Background(), core.Location{State: "NY"}, core.WasteEWaste)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !strings.Contains(reg.Note, "Stored Advisory") {
		t.Fatalf("expected primed advisory note, got %q", reg.Note)
	}
}
