package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/NabidKabir/kura-final-project/config"
	"github.com/NabidKabir/kura-final-project/internal/advisory"
	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/agent/telemetry"
	"github.com/NabidKabir/kura-final-project/internal/runtime"
	"github.com/NabidKabir/kura-final-project/internal/store"
)

// Run wires the full service and blocks serving HTTP: store, workflow
// orchestrator, advisory refresher, auth, and the background scheduler.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}

	// Install the OTel tracer and meter providers. The workflow tracer in
	// the core package resolves against these globals.
	rt, _, _, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{
		ServiceName:    "kura-api",
		ServiceVersion: "dev",
		MetricsPort:    cfg.Telemetry.MetricsPort,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Shutdown(context.Background()) }()

	// Workflow orchestrator with its collaborators. The regulation table
	// and facility directory are built here rather than inside the
	// orchestrator because the advisory refresher and the facilities API
	// share them.
	tele := telemetry.NewTelemetry(cfg.Telemetry)
	defer tele.Shutdown()
	llm, err := core.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}
	httpc := core.NewHTTPClient(cfg.LLM.Timeout, cfg.LLM.Retries, cfg.LLM.Backoff)
	regs := core.NewRegulationTable(cfg.General.DefaultState)
	facilities, err := core.NewFacilityDirectory()
	if err != nil {
		return err
	}
	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch := core.NewOrchestratorWith(cfg, orchLogger, tele, llm,
		core.NewClassifier(llm), core.NewLocator(cfg.General, httpc), regs, facilities)

	refresher := advisory.NewRefresher(cfg.Advisory, st, regs)
	if cfg.Advisory.Enabled {
		if err := refresher.Prime(ctx); err != nil {
			baseLogger.Printf("advisory prime: %v", err)
		}
	}

	// init auth and routes
	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	auth, err := initAuth(ctx, st, secret)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(runtime.EchoAuthMiddleware(secret))
	me.GET("", func(c echo.Context) error {
		sub, _ := runtime.SubjectFromContext(c.Request().Context())
		return c.JSON(200, MeResponse{UserID: sub})
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	qh := NewQueriesHandler(st, orch, rdb, cfg.Storage.Redis.CacheTTL)
	qh.Register(api.Group("/queries"), secret)

	fh := NewFacilitiesHandler(facilities, cfg.Workflow.FacilityRadiusKm)
	fh.Register(api.Group("/facilities"), secret)

	oh := NewOpsHandler(orch, refresher)
	oh.Register(api.Group("/ops"), secret)

	sched := &Scheduler{
		Cfg:       cfg.Scheduler,
		Store:     st,
		Refresher: refresher,
		Rdb:       rdb,
		Stop:      make(chan struct{}),
	}
	sched.Start()

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
