package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/runtime"
)

// FacilitiesHandler exposes the disposal facility directory directly,
// outside the workflow.
type FacilitiesHandler struct {
	dir      *core.FacilityDirectory
	radiusKm float64
}

func NewFacilitiesHandler(dir *core.FacilityDirectory, radiusKm float64) *FacilitiesHandler {
	return &FacilitiesHandler{dir: dir, radiusKm: radiusKm}
}

func (h *FacilitiesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/search", h.search)
	g.GET("/nearby", h.nearby)
}

// Full-text facility search
//
//	@Summary	Search facilities
//	@Tags		facilities
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		q	query	string	true	"Search terms"
//	@Param		k	query	int		false	"Max hits (default 5)"
//	@Produce	json
//	@Success	200	{array}		core.FacilitySearchHit
//	@Failure	400	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/api/facilities/search [get]
func (h *FacilitiesHandler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k := 0
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = n
	}
	hits, err := h.dir.Search(c.Request().Context(), q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hits)
}

// Facilities near a location for a waste type
//
//	@Summary	Nearby facilities
//	@Tags		facilities
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		city		query	string	false	"City name"
//	@Param		state		query	string	false	"State code"
//	@Param		waste_type	query	string	true	"Waste type"
//	@Param		lat			query	number	false	"Latitude"
//	@Param		lon			query	number	false	"Longitude"
//	@Param		radius_km	query	number	false	"Search radius in km"
//	@Produce	json
//	@Success	200	{array}		core.Facility
//	@Failure	400	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/api/facilities/nearby [get]
func (h *FacilitiesHandler) nearby(c echo.Context) error {
	loc := core.Location{
		City:  c.QueryParam("city"),
		State: c.QueryParam("state"),
	}
	if latRaw, lonRaw := c.QueryParam("lat"), c.QueryParam("lon"); latRaw != "" && lonRaw != "" {
		lat, errLat := strconv.ParseFloat(latRaw, 64)
		lon, errLon := strconv.ParseFloat(lonRaw, 64)
		if errLat != nil || errLon != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "lat and lon must be numbers")
		}
		loc.Latitude, loc.Longitude, loc.HasCoords = lat, lon, true
	}

	radius := h.radiusKm
	if raw := c.QueryParam("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "radius_km must be a positive number")
		}
		radius = r
	}

	rawType := strings.TrimSpace(c.QueryParam("waste_type"))
	if rawType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "waste_type is required")
	}
	out, err := h.dir.Find(c.Request().Context(), loc, core.ParseWasteType(rawType), radius)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}
