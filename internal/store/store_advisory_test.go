package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestUpsertAdvisory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(`INSERT INTO advisories`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := AdvisoryRecord{
		State:     "ny",
		WasteType: "E-Waste",
		Title:     "Electronic Equipment Recycling and Reuse Act",
		URL:       "https://dec.ny.gov/environmental-protection/recycling-composting/electronic-waste-recycling",
		Summary:   "Covered electronics are banned from disposal as solid waste.",
	}
	if err := st.UpsertAdvisory(context.Background(), rec); err != nil {
		t.Fatalf("UpsertAdvisory returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertAdvisoryValidation(t *testing.T) {
	st := &Store{}
	err := st.UpsertAdvisory(context.Background(), AdvisoryRecord{State: "NY", WasteType: "e-waste"})
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestListAdvisories(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	fetched := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "state", "waste_type", "title", "url", "summary", "fetched_at", "created_at", "updated_at"}).
		AddRow(int64(2), "NY", "e-waste", "E-waste rules", "https://dec.ny.gov/e-waste", "Summary", fetched, fetched, fetched).
		AddRow(int64(1), "NY", "general", "Solid waste guidance", "https://dec.ny.gov/solid-waste", "", fetched.Add(-time.Hour), fetched, fetched)
	mock.ExpectQuery(`FROM advisories`).WillReturnRows(rows)

	out, err := st.ListAdvisories(context.Background(), "ny", []string{"e-waste", "general"})
	if err != nil {
		t.Fatalf("ListAdvisories returned error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 advisories, got %d", len(out))
	}
	if out[0].WasteType != "e-waste" || out[1].Title != "Solid waste guidance" {
		t.Fatalf("unexpected advisories: %+v", out)
	}
}

func TestListAdvisoriesRequiresState(t *testing.T) {
	st := &Store{}
	if _, err := st.ListAdvisories(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for missing state")
	}
}
