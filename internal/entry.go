// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/murmur/internal/api"
	"github.com/starford/murmur/internal/collection"
	"github.com/starford/murmur/internal/mcpserver"
	"github.com/starford/murmur/internal/noteservice"
	"github.com/starford/murmur/internal/recordings"
	"github.com/starford/murmur/internal/search"
	"github.com/starford/murmur/internal/sse"
	"github.com/starford/murmur/internal/storage"
	"github.com/starford/murmur/internal/topics"
	"github.com/starford/murmur/internal/watch"
)

// App is the wired application: registry, engine, indexer, report writer
// and, when configured, the recording importer.
type App struct {
	cfg      *Config
	logger   *slog.Logger
	registry *collection.Registry
	service  *noteservice.Service
	version  string
}

// New builds the application from the given options without starting
// anything.
func New(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		out := app.logOut
		if out == nil {
			out = os.Stdout
		}
		logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("primary", cfg.Primary.Name),
		slog.String("primary_path", cfg.Primary.Path),
		slog.Int("collections", len(cfg.Collections)),
		slog.Bool("recordings", cfg.Recordings.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// The primary collection receives the report and imports.
	if err := os.MkdirAll(cfg.Primary.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create primary dir: %w", err)
	}

	primary := cfg.PrimaryCollection()
	registry := collection.NewRegistry(primary, cfg.ExternalCollections())
	for _, c := range registry.All() {
		if !c.Enabled {
			continue
		}
		if err := registry.Validate(c); err != nil {
			logger.Warn("collection unreachable",
				slog.String("collection", c.Name),
				slog.String("root", c.Root),
				slog.String("error", err.Error()))
		}
	}

	store, err := storage.NewFS(primary.Name, primary.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	loader := collection.NewLoader(nil, logger)
	indexer := topics.NewIndexer(registry, loader, logger,
		topics.WithMaxRecent(cfg.Index.MaxRecent),
		topics.WithExclude(primary.Name, cfg.Index.ReportPath))
	writer := topics.NewWriter(store, cfg.Index.ReportPath,
		topics.RenderOptions{Primary: primary.Name, Icons: registry.Icons()}, logger)

	deps := noteservice.Deps{
		Registry: registry,
		Loader:   loader,
		Engine:   search.NewEngine(registry, loader, logger),
		Indexer:  indexer,
		Writer:   writer,
		Logger:   logger,
	}

	if cfg.Recordings.Enabled() {
		if err := cfg.Recordings.RequireToken(); err != nil {
			return nil, err
		}
		client, err := recordings.NewClient(cfg.Recordings.BaseURL, cfg.Recordings.Token,
			cfg.Recordings.PageSize, cfg.Recordings.Timeout)
		if err != nil {
			return nil, fmt.Errorf("init recordings client: %w", err)
		}
		deps.Importer = recordings.NewImporter(client, store, primary, loader, cfg.Recordings.Subdir, logger)
	}

	version := app.version
	if version == "" {
		version = "dev"
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		service:  noteservice.NewService(deps),
		version:  version,
	}, nil
}

// Service returns the note service shared by every front end.
func (a *App) Service() *noteservice.Service {
	return a.service
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run builds the application and serves HTTP until ctx is cancelled or a
// shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := New(opts...)
	if err != nil {
		return err
	}
	return app.Serve(ctx)
}

// ServeMCP serves the MCP tools on stdin/stdout.
func (a *App) ServeMCP() error {
	a.logger.Info("MCP server starting", slog.String("transport", "stdio"))
	return mcpserver.New(a.service, a.version).ServeStdio()
}

// Serve runs the HTTP API, the collection watcher and, when configured,
// periodic imports.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	// Bring the report up to date before serving.
	if res, err := a.service.Rebuild(ctx); err != nil {
		logger.Warn("initial topic index failed", slog.String("error", err.Error()))
	} else {
		logger.Info("topic index ready",
			slog.String("path", res.Path),
			slog.Bool("written", res.Written),
			slog.Int("topics", res.Topics),
			slog.Int("warnings", len(res.Warnings)))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(a.service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker,
		func(res *noteservice.RebuildResult) { broker.PublishIndexUpdated(res.Topics, res.Written) })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := a.registry.Validate(a.registry.Primary()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"primary collection unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch enabled collections; regenerate the report once changes settle.
	watcher := watch.New(a.registry.Enabled(), cfg.Index.Debounce, logger)
	watcher.Ignore(cfg.Primary.Path, cfg.Index.ReportPath)
	g.Go(func() error {
		err := watcher.Run(gCtx, watch.Handler{
			OnChange: func(c watch.Change) {
				broker.PublishChange(c.Collection, c.Path, c.Kind)
			},
			OnSettle: func(ctx context.Context) {
				res, err := a.service.Rebuild(ctx)
				if err != nil {
					logger.Warn("topic index rebuild failed", slog.String("error", err.Error()))
					return
				}
				broker.PublishIndexUpdated(res.Topics, res.Written)
			},
		})
		if err != nil {
			logger.Warn("watcher disabled", slog.String("error", err.Error()))
		}
		return nil
	})

	if cfg.Recordings.Enabled() && cfg.Recordings.Interval > 0 {
		g.Go(func() error {
			a.importLoop(gCtx, cfg.Recordings.Interval)
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// SSE streams end when the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher and import loop
// stop together with the HTTP server.
var errShutdown = errors.New("shutdown")

func (a *App) importLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := a.service.Import(ctx)
			ticker.Reset(nextImport(err, every))
			if err != nil {
				a.logger.Warn("scheduled import failed", slog.String("error", err.Error()))
				continue
			}
			if res.Written > 0 {
				a.logger.Info("scheduled import", slog.Int("written", res.Written))
			}
		}
	}
}

// nextImport returns the delay before the next scheduled import. Only a
// rate limit longer than every stretches it; any other outcome restores
// the configured interval.
func nextImport(err error, every time.Duration) time.Duration {
	var rl *recordings.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > every {
		return rl.RetryAfter
	}
	return every
}
