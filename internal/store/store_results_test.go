package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
)

func TestSaveQueryResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	res := core.WorkflowResult{
		ID:            "11111111-2222-3333-4444-555555555555",
		Success:       true,
		Query:         "how do I recycle an old laptop",
		WasteType:     core.WasteEWaste,
		FinalResponse: "Take it to an e-waste drop-off.",
		Location:      &core.Location{City: "New York", State: "NY"},
		Classification: &core.Classification{
			Confidence: 0.9,
		},
		Facilities:       []core.Facility{{Name: "Best Buy Electronics Recycling"}},
		ConfidenceScore:  0.9,
		ProcessingTimeMS: 1200,
		Iterations:       6,
	}

	mock.ExpectExec(`INSERT INTO query_results`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveQueryResult(context.Background(), "user-1", res); err != nil {
		t.Fatalf("SaveQueryResult returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveQueryResultRequiresID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	if err := st.SaveQueryResult(context.Background(), "", core.WorkflowResult{}); err == nil {
		t.Fatal("expected error for missing result id")
	}
}

func TestGetQueryResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "query", "waste_type", "success", "final_response", "error_message",
		"user_location", "waste_classification", "local_regulations", "disposal_locations",
		"confidence_score", "processing_time_ms", "iterations", "created_at",
	}).AddRow(
		"res-1", "dispose of paint cans", "hazardous", true, "Use the SAFE center.", "",
		[]byte(`{"city":"Los Angeles","state":"CA"}`), []byte(`{"waste_type":"hazardous","confidence":0.85}`), nil,
		[]byte(`[{"name":"LA SAFE Collection Centers"}]`),
		0.85, int64(900), 6, created,
	)
	mock.ExpectQuery(`FROM query_results`).WillReturnRows(rows)

	res, ok, err := st.GetQueryResult(context.Background(), "res-1", "")
	if err != nil {
		t.Fatalf("GetQueryResult returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected record to exist")
	}
	if res.WasteType != core.WasteHazardous {
		t.Fatalf("expected hazardous waste type, got %s", res.WasteType)
	}
	if res.Location == nil || res.Location.City != "Los Angeles" {
		t.Fatalf("expected location to round-trip, got %+v", res.Location)
	}
	if res.Regulation != nil {
		t.Fatalf("expected nil regulation for NULL column, got %+v", res.Regulation)
	}
	if len(res.Facilities) != 1 || res.Facilities[0].Name != "LA SAFE Collection Centers" {
		t.Fatalf("unexpected facilities: %+v", res.Facilities)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetQueryResultMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`FROM query_results`).WillReturnError(sql.ErrNoRows)

	_, ok, err := st.GetQueryResult(context.Background(), "missing", "user-1")
	if err != nil {
		t.Fatalf("GetQueryResult returned error: %v", err)
	}
	if ok {
		t.Fatal("expected record to be missing")
	}
}

func TestListQueryResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "query", "waste_type", "success", "confidence_score", "processing_time_ms", "created_at"}).
		AddRow("res-2", "old tv", "e-waste", true, 0.9, int64(800), created).
		AddRow("res-1", "paint", "hazardous", false, 0.1, int64(30500), created.Add(-time.Hour))
	mock.ExpectQuery(`FROM query_results`).WillReturnRows(rows)

	out, err := st.ListQueryResults(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("ListQueryResults returned error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}
	if out[0].ID != "res-2" || out[1].WasteType != "hazardous" {
		t.Fatalf("unexpected summaries: %+v", out)
	}
}

func TestPruneQueryResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(`DELETE FROM query_results`).
		WithArgs(90).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := st.PruneQueryResults(context.Background(), 90)
	if err != nil {
		t.Fatalf("PruneQueryResults returned error: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 results pruned, got %d", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPruneQueryResultsRejectsNonPositive(t *testing.T) {
	st := &Store{}
	if _, err := st.PruneQueryResults(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero retention")
	}
}
