// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tkazmier/projectwatch/internal/config"
	"github.com/tkazmier/projectwatch/internal/notify"
	"github.com/tkazmier/projectwatch/internal/notify/discord"
	"github.com/tkazmier/projectwatch/internal/pkg/ctxlog"
	"github.com/tkazmier/projectwatch/internal/pkg/httputil"
	"github.com/tkazmier/projectwatch/internal/pkg/metrics"
	"github.com/tkazmier/projectwatch/internal/pkg/postgres"
	"github.com/tkazmier/projectwatch/internal/reconcile"
	"github.com/tkazmier/projectwatch/internal/scratch"
	"github.com/tkazmier/projectwatch/internal/subscriptions"
	subscriptionspostgres "github.com/tkazmier/projectwatch/internal/subscriptions/postgres"
	"github.com/tkazmier/projectwatch/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	engine        *reconcile.Engine
}

// New creates a new application instance: connects the database, applies
// migrations and wires the engine, dispatcher and command API together.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.Migrate(cfg.Database.URL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, engine, err := app.setup()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup: %w", err)
	}
	app.engine = engine

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on a separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the reconciliation engine and the HTTP servers. It blocks
// until the main server stops.
func (a *App) Run(ctx context.Context) error {
	a.engine.Start(ctx)

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting command api server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the engine and both HTTP servers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.metricsCancel()

	// Stop the engine first so no notification is dispatched mid-shutdown.
	if a.engine != nil {
		a.engine.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Engine returns the reconciliation engine instance, for tests.
func (a *App) Engine() *reconcile.Engine {
	return a.engine
}

func (a *App) setup() (*chi.Mux, *reconcile.Engine, error) {
	r := chi.NewRouter()

	// Metrics middleware first so it measures full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	gateway := scratch.NewClient(scratch.Config{
		BaseURL: a.config.Upstream.APIBaseURL,
		Timeout: a.config.Upstream.FetchTimeout,
	})

	renderer, err := notify.NewRenderer(a.config.Upstream.ProjectBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create renderer: %w", err)
	}

	discordClient, err := discord.NewClient(discord.Config{
		BaseURL:   a.config.Discord.APIBaseURL,
		BotToken:  a.config.Discord.BotToken,
		RateLimit: a.config.Discord.RateLimit,
		Timeout:   a.config.Discord.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create discord client: %w", err)
	}

	dispatcher := notify.NewDispatcher(renderer,
		discord.NewChannelSender(discordClient),
		discord.NewDirectSender(discordClient),
	)

	repo := subscriptionspostgres.NewRepository(a.db)
	service := subscriptions.NewService(repo, gateway)
	handler := subscriptions.NewHandler(service)

	engine := reconcile.NewEngine(reconcile.Config{
		Interval:     a.config.Poll.Interval,
		FetchTimeout: a.config.Upstream.FetchTimeout,
	}, repo, gateway, dispatcher)

	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return r, engine, nil
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
