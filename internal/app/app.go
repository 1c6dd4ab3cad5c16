package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"careerstack/apps/converter/features/conversion"
	"careerstack/apps/converter/features/history"
	"careerstack/apps/converter/internal/config"
	"careerstack/apps/converter/internal/events"
	"careerstack/apps/converter/internal/htmlpatch"
	"careerstack/apps/converter/internal/middleware"
)

// Office is the office bridge as seen by the HTTP layer.
type Office interface {
	conversion.Converter
	conversion.Pinger
}

type App struct {
	Handler    http.Handler
	Conversion *conversion.Service
	History    *history.Service

	port    int
	limiter *middleware.LimiterStore
}

// New wires features and routes. db and pub may be nil, which disables
// history and events respectively.
func New(
	cfg *config.Config,
	db *sql.DB,
	pub events.Publisher,
	office Office,
	logger *slog.Logger,
) (*App, error) {
	preset, err := htmlpatch.ParsePreset(cfg.HTMLStylePreset)
	if err != nil {
		return nil, err
	}

	a := &App{port: cfg.ServerPort}

	// Feature: History
	var recorder conversion.Recorder
	var historyHandler *history.Handler
	if db != nil {
		a.History = history.NewService(history.NewPostgresRepo(db))
		recorder = a.History
		historyHandler = history.NewHandler(a.History)
	}

	// Events
	var announcer conversion.Announcer
	if pub != nil {
		announcer = events.NewEmitter(pub, config.TopicConversionResult)
	}

	// Feature: Conversion
	a.Conversion = conversion.NewService(office, office, recorder, announcer, conversion.Options{
		Preset:      preset,
		TempDir:     cfg.TempDir,
		TemplateDir: cfg.TemplateDir,
	})
	conversionHandler := conversion.NewHandler(a.Conversion, cfg.MaxUploadBytes())

	// Middleware: rate limit on conversions only
	limit := func(h http.Handler) http.Handler { return h }
	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewLimiterStore(cfg.RateLimitRPS, cfg.RateLimitBurst)
		limit = middleware.RateLimit(a.limiter)
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("GET /health", middleware.CorrelationID(middleware.CORS(conversionHandler.Health)))

	// CORS wraps the limiter so rejected requests stay readable cross-origin.
	convert := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.CORS(limit(h).ServeHTTP))
	}
	mux.Handle("POST /convert/docx-to-html", convert(conversionHandler.DocxToHTML))
	mux.Handle("POST /convert/html-to-docx", convert(conversionHandler.HTMLToDocx))
	mux.Handle("POST /convert/batch", convert(conversionHandler.Batch))

	if historyHandler != nil {
		mux.Handle("GET /conversions", middleware.CorrelationID(middleware.CORS(historyHandler.List)))
		mux.Handle("GET /conversions/{id}", middleware.CorrelationID(middleware.CORS(historyHandler.Get)))
	}

	// Preflight
	mux.Handle("OPTIONS /convert/", middleware.CORS(func(w http.ResponseWriter, r *http.Request) {}))

	a.Handler = mux

	logger.Info("app initialized",
		"preset", preset,
		"history", db != nil,
		"events", pub != nil,
		"rate_limit_rps", cfg.RateLimitRPS,
	)
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.limiter != nil {
		a.limiter.StartJanitor(ctx, time.Minute)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
