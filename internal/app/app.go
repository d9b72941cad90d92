// Package app wires the application together: configuration, logging,
// metrics, the session store, the parse cache, the chart renderer, the
// report assembler and the HTTP server.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"reportlab/internal/chart"
	"reportlab/internal/config"
	"reportlab/internal/dataset"
	apperrors "reportlab/internal/errors"
	"reportlab/internal/infrastructure"
	customMiddleware "reportlab/internal/middleware"
	"reportlab/internal/report"
	"reportlab/internal/services"
	"reportlab/internal/session"
	transport "reportlab/internal/transport/http"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application is the dependency container for the whole process.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Router   *chi.Mux
	Server   *http.Server
	Metrics  *infrastructure.Metrics
	Sessions *session.Store
	Cache    *dataset.Cache
	Service  *services.ReportService

	frontendFS fs.FS
}

// NewApplication loads configuration and wires every component.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	app := &Application{
		Config:     cfg,
		Logger:     logger,
		frontendFS: frontendFS,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the service graph and connects the cache
// and session observers to the metrics collectors.
func (a *Application) initializeServices() {
	a.Metrics = infrastructure.NewMetrics()

	a.Cache = dataset.NewCache(a.Config.Cache.TTL, a.Config.Cache.MaxEntries)
	a.Cache.OnHit = a.Metrics.CacheHitsTotal.Inc
	a.Cache.OnMiss = a.Metrics.CacheMissTotal.Inc

	a.Sessions = session.NewStore(a.Config.Session.TTL, a.Logger)
	a.Sessions.OnCountChange = func(n int) {
		a.Metrics.ActiveSessions.Set(float64(n))
	}

	renderer := chart.NewRenderer(
		a.Config.Report.ScratchDir,
		a.Config.Report.ChartWidth,
		a.Config.Report.ChartHeight,
		a.Logger,
	)
	assembler := report.NewAssembler(a.Logger)

	a.Service = services.NewReportService(
		a.Config.Report,
		a.Cache,
		renderer,
		assembler,
		a.Metrics,
		a.Logger,
	)
}

// setupRouter configures the middleware chain and mounts all routes.
func (a *Application) setupRouter() {
	errorHandler := apperrors.NewErrorHandler(a.Logger, false)

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.Compress(5))
	r.Use(customMiddleware.NewRateLimiter(
		a.Config.Server.RateLimitRPS,
		a.Config.Server.RateLimitBurst,
		a.Logger,
	).Handler)

	sessions := transport.NewSessionHandler(
		a.Service, a.Sessions, a.Config.Upload.MaxBytes, a.Logger, errorHandler)
	health := transport.NewHealthHandler(a.Sessions, a.Cache, Version, a.Logger)

	r.Route("/api", func(api chi.Router) {
		api.Use(render.SetContentType(render.ContentTypeJSON))
		api.NotFound(errorHandler.NotFound)
		api.MethodNotAllowed(errorHandler.MethodNotAllowed)
		api.Mount("/", transport.NewRouter(sessions, health))
	})

	r.Handle("/metrics", a.Metrics.Handler())

	if a.frontendFS != nil {
		a.setupFrontend(r)
	}

	a.Router = r
}

// setupFrontend serves the embedded single-page UI.
func (a *Application) setupFrontend(r chi.Router) {
	fileServer := http.FileServer(http.FS(a.frontendFS))
	r.Get("/", fileServer.ServeHTTP)
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start launches the session janitor and the HTTP server. A listen
// failure cancels the context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Sessions.StartJanitor(ctx, a.Config.Session.SweepInterval)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully shuts down the server and flushes the log file.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.WarnContext(ctx, "failed to close log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run starts the application and blocks until an interrupt or SIGTERM.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
