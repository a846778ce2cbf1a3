package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
)

func setupFacilitiesHandler(t *testing.T) *FacilitiesHandler {
	t.Helper()
	dir, err := core.NewFacilityDirectory()
	if err != nil {
		t.Fatalf("facility directory: %v", err)
	}
	return NewFacilitiesHandler(dir, 25)
}

func getRequest(target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestSearchFacilities(t *testing.T) {
	h := setupFacilitiesHandler(t)

	ctx, rec := getRequest("/api/facilities/search?q=electronics+recycling")
	if err := h.search(ctx); err != nil {
		t.Fatalf("search: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var hits []core.FacilitySearchHit
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil {
		t.Fatalf("decode hits: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected search hits for electronics recycling")
	}
	for _, hit := range hits {
		if hit.Facility.Name == "" {
			t.Fatal("hit missing facility name")
		}
		if hit.Score <= 0 {
			t.Fatalf("hit %s has non-positive score", hit.Facility.Name)
		}
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h := setupFacilitiesHandler(t)

	ctx, _ := getRequest("/api/facilities/search")
	err := h.search(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSearchRejectsBadK(t *testing.T) {
	h := setupFacilitiesHandler(t)

	ctx, _ := getRequest("/api/facilities/search?q=recycling&k=zero")
	err := h.search(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestNearbySortsByDistance(t *testing.T) {
	h := setupFacilitiesHandler(t)

	// Coordinates just off Broadway; Brooklyn folds onto the New York
	// dataset.
	ctx, rec := getRequest("/api/facilities/nearby?city=brooklyn&waste_type=e-waste&lat=40.73&lon=-73.99")
	if err := h.nearby(ctx); err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []core.Facility
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode facilities: %v", err)
	}
	if len(out) < 2 {
		t.Fatalf("expected at least two e-waste facilities, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].DistanceKm < out[i-1].DistanceKm {
			t.Fatalf("facilities not sorted by distance: %v before %v", out[i-1].DistanceKm, out[i].DistanceKm)
		}
	}
	for _, f := range out {
		if !f.Accepts(core.WasteEWaste) {
			t.Fatalf("facility %s does not accept e-waste", f.Name)
		}
	}
}

func TestNearbyRequiresWasteType(t *testing.T) {
	h := setupFacilitiesHandler(t)

	ctx, _ := getRequest("/api/facilities/nearby?city=chicago")
	err := h.nearby(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestNearbyRejectsBadCoords(t *testing.T) {
	h := setupFacilitiesHandler(t)

	ctx, _ := getRequest("/api/facilities/nearby?waste_type=e-waste&lat=north&lon=-73.99")
	err := h.nearby(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
