package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/NabidKabir/kura-final-project/internal/advisory"
	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/runtime"
)

// OpsHandler exposes operational endpoints (performance summaries,
// advisory refresh).
type OpsHandler struct {
	orch      *core.Orchestrator
	refresher *advisory.Refresher
}

func NewOpsHandler(orch *core.Orchestrator, refresher *advisory.Refresher) *OpsHandler {
	return &OpsHandler{orch: orch, refresher: refresher}
}

func (h *OpsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/performance", h.performance)
	g.GET("/dashboard", h.dashboard)
	g.POST("/advisories/refresh", h.refreshAdvisories, runtime.RequireScopes("ops"))
}

// performance returns orchestrator performance metrics and summaries.
//
//	@Summary	Performance metrics and summaries
//	@Tags		ops
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/api/ops/performance [get]
func (h *OpsHandler) performance(c echo.Context) error {
	data := h.orch.GetPerformanceMetrics()
	return c.JSON(http.StatusOK, data)
}

// refreshAdvisories re-scrapes the configured advisory sources now
// instead of waiting for the scheduler. Requires a token carrying the
// ops scope.
//
//	@Summary	Refresh regulatory advisories
//	@Tags		ops
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{object}	RefreshResponse
//	@Failure	403	{object}	HTTPError
//	@Failure	502	{object}	HTTPError
//	@Router		/api/ops/advisories/refresh [post]
func (h *OpsHandler) refreshAdvisories(c echo.Context) error {
	if h.refresher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "advisory refresh not configured")
	}
	if err := h.refresher.Refresh(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, RefreshResponse{Status: "ok"})
}

// dashboard returns a minimal HTML dashboard rendering key metrics without JS.
func (h *OpsHandler) dashboard(c echo.Context) error {
	m := h.orch.GetPerformanceMetrics()
	metrics := m["metrics"]
	stages, _ := m["stages"].(map[string]interface{})
	costs := m["costs"]
	report, _ := m["report"].(string)
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>Kura Ops Dashboard</title></head><body style=\"font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif; color:#e5e7eb; background:#0f172a;\">")
	b.WriteString("<div style=\"max-width:960px;margin:24px auto;padding:0 16px\">")
	b.WriteString("<h1 style=\"font-size:18px;font-weight:600;margin-bottom:8px\">Operations Dashboard</h1>")
	b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\"><code>")
	if b2, err := json.MarshalIndent(metrics, "", "  "); err == nil {
		b.Write(b2)
	}
	b.WriteString("</code></pre>")
	if len(stages) > 0 {
		b.WriteString("<h2 style=\"font-size:14px;font-weight:600;margin:16px 0 8px\">Stages</h2>")
		b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\"><code>")
		if b3, err := json.MarshalIndent(stages, "", "  "); err == nil {
			b.Write(b3)
		}
		b.WriteString("</code></pre>")
	}
	if costs != nil {
		b.WriteString("<h2 style=\"font-size:14px;font-weight:600;margin:16px 0 8px\">LLM Costs</h2>")
		b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\"><code>")
		if b4, err := json.MarshalIndent(costs, "", "  "); err == nil {
			b.Write(b4)
		}
		b.WriteString("</code></pre>")
	}
	if report != "" {
		b.WriteString("<h2 style=\"font-size:14px;font-weight:600;margin:16px 0 8px\">Report</h2>")
		b.WriteString("<pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\">")
		b.WriteString(template.HTMLEscapeString(report))
		b.WriteString("</pre>")
	}
	b.WriteString("</div></body></html>")
	return c.HTML(http.StatusOK, b.String())
}
