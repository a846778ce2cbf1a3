package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/runtime"
	"github.com/NabidKabir/kura-final-project/internal/store"
)

// asyncQueryTimeout bounds background processing of queries accepted
// with 202.
const asyncQueryTimeout = 5 * time.Minute

// QueriesHandler exposes disposal query submission and retrieval.
type QueriesHandler struct {
	store    *store.Store
	orch     *core.Orchestrator
	rdb      *redis.Client
	cacheTTL time.Duration
	logger   *log.Logger
}

func NewQueriesHandler(st *store.Store, orch *core.Orchestrator, rdb *redis.Client, cacheTTL time.Duration) *QueriesHandler {
	return &QueriesHandler{
		store:    st,
		orch:     orch,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		logger:   log.New(log.Writer(), "[QUERIES] ", log.LstdFlags),
	}
}

func (h *QueriesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.submit)
	g.GET("", h.list)
	g.GET("/:query_id", h.result)
	g.GET("/:query_id/status", h.status)
	g.POST("/:query_id/cancel", h.cancel)
}

// Submit a disposal question
//
//	@Summary		Submit query
//	@Description	Runs the disposal workflow; async=true returns 202 with an id to poll
//	@Tags			queries
//	@Security		BearerAuth
//	@Security		CookieAuth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		QueryRequest	true	"Query payload"
//	@Success		200		{object}	core.WorkflowResult
//	@Success		202		{object}	IDResponse
//	@Failure		400		{object}	HTTPError
//	@Router			/api/queries [post]
func (h *QueriesHandler) submit(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	if req.Async {
		id := uuid.New().String()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), asyncQueryTimeout)
			defer cancel()
			res, err := h.orch.ProcessQueryWithID(ctx, id, req.Query, req.Location)
			if err != nil {
				h.logger.Printf("async query %s failed: %v", id, err)
			}
			h.persist(userID, res)
		}()
		return c.JSON(http.StatusAccepted, IDResponse{ID: id})
	}

	res, err := h.orch.ProcessQuery(c.Request().Context(), req.Query, req.Location)
	if err != nil {
		h.logger.Printf("query %s failed: %v", res.ID, err)
	}
	h.persist(userID, res)
	return c.JSON(http.StatusOK, res)
}

// persist saves and caches a finished result. It runs on its own
// context so a disconnected client cannot lose the write.
func (h *QueriesHandler) persist(userID string, res core.WorkflowResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.store.SaveQueryResult(ctx, userID, res); err != nil {
		h.logger.Printf("failed to save query result %s: %v", res.ID, err)
		return
	}
	h.cacheResult(ctx, userID, res)
}

// List recent query results
//
//	@Summary	List queries
//	@Tags		queries
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		limit	query	int	false	"Max results (default 50)"
//	@Produce	json
//	@Success	200	{array}		store.QueryResultSummary
//	@Failure	400	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/api/queries [get]
func (h *QueriesHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	items, err := h.store.ListQueryResults(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// Get a query result by id
//
//	@Summary	Query result by ID
//	@Tags		queries
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		query_id	path	string	true	"Query ID"
//	@Produce	json
//	@Success	200	{object}	core.WorkflowResult
//	@Failure	404	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/api/queries/{query_id} [get]
func (h *QueriesHandler) result(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("query_id")
	ctx := c.Request().Context()

	if h.rdb != nil {
		if b, err := h.rdb.Get(ctx, queryCacheKey(userID, id)).Bytes(); err == nil {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	res, ok, err := h.store.GetQueryResult(ctx, id, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "query result not found")
	}
	h.cacheResult(ctx, userID, res)
	return c.JSON(http.StatusOK, res)
}

// Get processing status for a query
//
//	@Summary	Query status
//	@Tags		queries
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		query_id	path	string	true	"Query ID"
//	@Produce	json
//	@Success	200	{object}	core.QueryStatus
//	@Failure	404	{object}	HTTPError
//	@Router		/api/queries/{query_id}/status [get]
func (h *QueriesHandler) status(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("query_id")

	if st, err := h.orch.GetStatus(id); err == nil {
		return c.JSON(http.StatusOK, st)
	}

	// Finished queries are no longer tracked in memory; answer from the
	// store instead.
	res, ok, err := h.store.GetQueryResult(c.Request().Context(), id, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "query not found")
	}
	st := core.QueryStatus{
		QueryID:     res.ID,
		Status:      "completed",
		Stage:       core.StageDone,
		Iterations:  res.Iterations,
		StartedAt:   res.CreatedAt,
		LastUpdated: res.CreatedAt,
	}
	if !res.Success {
		st.Status = "failed"
		st.Error = res.ErrorMessage
	}
	return c.JSON(http.StatusOK, st)
}

// Cancel an in-flight query
//
//	@Summary	Cancel query
//	@Tags		queries
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		query_id	path	string	true	"Query ID"
//	@Produce	json
//	@Success	202	{object}	IDResponse
//	@Failure	404	{object}	HTTPError
//	@Router		/api/queries/{query_id}/cancel [post]
func (h *QueriesHandler) cancel(c echo.Context) error {
	id := c.Param("query_id")
	if err := h.orch.Cancel(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusAccepted, IDResponse{ID: id})
}

func (h *QueriesHandler) cacheResult(ctx context.Context, userID string, res core.WorkflowResult) {
	if h.rdb == nil || h.cacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := h.rdb.Set(ctx, queryCacheKey(userID, res.ID), b, h.cacheTTL).Err(); err != nil {
		h.logger.Printf("failed to cache query result %s: %v", res.ID, err)
	}
}

// queryCacheKey scopes cached results to their owner so one user's
// cached entry can never answer another user's request.
func queryCacheKey(userID, queryID string) string {
	return "kura:query:" + userID + ":" + queryID
}
