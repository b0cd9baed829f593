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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/stenmark/docbridge/internal/api"
	"github.com/stenmark/docbridge/internal/converter"
	"github.com/stenmark/docbridge/internal/engine"
	"github.com/stenmark/docbridge/internal/journal"
	"github.com/stenmark/docbridge/internal/mapping"
	"github.com/stenmark/docbridge/internal/matcher"
	"github.com/stenmark/docbridge/internal/mcpserver"
	"github.com/stenmark/docbridge/internal/sse"
	"github.com/stenmark/docbridge/internal/storage"
	"github.com/stenmark/docbridge/internal/wiki"
)

// runtime bundles every collaborator a command needs, built once from the
// configuration.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	store    *storage.FS
	conv     *converter.Converter
	mappings *mapping.Store
	match    *matcher.Matcher
	client   wiki.Client
	journal  *journal.DB
	dryRun   bool
}

func newRuntime(opts ...Option) (*runtime, error) {
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
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("configuration loaded",
		slog.String("sync_directory", cfg.Sync.SyncDirectory),
		slog.String("mapping_file", cfg.Sync.MappingFile),
		slog.String("wiki_base_url", cfg.Wiki.BaseURL),
		slog.String("space_key", cfg.Wiki.SpaceKey),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Sync.SyncDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create sync dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Sync.MappingFile), 0o755); err != nil {
		return nil, fmt.Errorf("create mapping dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Sync.SyncDirectory)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	mappings, err := mapping.Load(cfg.Sync.MappingFile, logger)
	if err != nil {
		return nil, fmt.Errorf("init mapping store: %w", err)
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	client := app.client
	if client == nil {
		client = wiki.NewHTTPClient(cfg.Wiki.BaseURL, cfg.Wiki.Token)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		conv:     converter.New(store),
		mappings: mappings,
		match:    matcher.New(cfg.Sync.MatchThreshold),
		client:   client,
		journal:  db,
	}
	return rt, rt.applyOverrides(app)
}

// applyOverrides folds CLI-level option overrides into the config.
func (rt *runtime) applyOverrides(app *application) error {
	if app.mode != "" {
		if _, err := engine.ParseMode(app.mode); err != nil {
			return err
		}
		rt.cfg.Sync.Mode = app.mode
	}
	if app.strategy != "" {
		if _, err := engine.ParseStrategy(app.strategy); err != nil {
			return err
		}
		rt.cfg.Sync.ConflictStrategy = app.strategy
	}
	if app.spaceKey != "" {
		rt.cfg.Wiki.SpaceKey = app.spaceKey
	}
	if app.parallelism > 0 {
		rt.cfg.Sync.Parallelism = app.parallelism
	}
	rt.dryRun = app.dryRun
	return nil
}

func (rt *runtime) close() {
	if err := rt.journal.Close(); err != nil {
		rt.logger.Warn("journal close failed", slog.String("error", err.Error()))
	}
}

// engineOptions derives the run options from the configuration.
func (rt *runtime) engineOptions() engine.Options {
	return engine.Options{
		Mode:                engine.SyncMode(rt.cfg.Sync.Mode),
		Strategy:            engine.ConflictStrategy(rt.cfg.Sync.ConflictStrategy),
		SpaceKey:            rt.cfg.Wiki.SpaceKey,
		AutoCreate:          rt.cfg.Sync.AutoCreatePages,
		PreserveHierarchy:   rt.cfg.Sync.PreserveHierarchy,
		IncludeMetadata:     rt.cfg.Sync.IncludeMetadata,
		RequiredFrontmatter: rt.cfg.Sync.RequiredFrontmatter,
		Parallelism:         rt.cfg.Sync.Parallelism,
		DryRun:              rt.dryRun,
	}
}

func (rt *runtime) newEngine(opts engine.Options) *engine.Engine {
	return engine.New(rt.logger, rt.store, rt.conv, rt.mappings, rt.match, rt.client, opts)
}

// runAndRecord runs a sync and journals the report. The report is returned
// even when the run errors (abort strategy) so callers can show partial
// results.
func (rt *runtime) runAndRecord(ctx context.Context, opts engine.Options) (*engine.Report, error) {
	report, runErr := rt.newEngine(opts).Run(ctx)
	if report != nil && len(report.Outcomes) > 0 && !opts.DryRun {
		if _, err := rt.journal.RecordRun(report); err != nil {
			rt.logger.Warn("journal record failed", slog.String("error", err.Error()))
		}
	}
	return report, runErr
}

// RunSync performs one synchronization run and returns its report.
func RunSync(ctx context.Context, opts ...Option) (*engine.Report, error) {
	rt, err := newRuntime(opts...)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	if !rt.cfg.Sync.Enabled {
		return nil, fmt.Errorf("sync is disabled in configuration")
	}
	return rt.runAndRecord(ctx, rt.engineOptions())
}

// RunPull fetches one page and writes it into the docs tree.
func RunPull(ctx context.Context, pageID, outputPath string, opts ...Option) (engine.Outcome, error) {
	rt, err := newRuntime(opts...)
	if err != nil {
		return engine.Outcome{}, err
	}
	defer rt.close()

	outcome := rt.newEngine(rt.engineOptions()).PullPage(ctx, pageID, outputPath)
	if outcome.Status == engine.StatusFailed {
		return outcome, fmt.Errorf("pull %s: %s", pageID, outcome.Message)
	}
	return outcome, nil
}

// StatusInfo summarizes the local sync state.
type StatusInfo struct {
	MappedFiles    int                      `json:"mapped_files"`
	MappingCorrupt bool                     `json:"mapping_corrupt,omitempty"`
	LastRun        *journal.RunRow          `json:"last_run,omitempty"`
	Mappings       map[string]mapping.Entry `json:"mappings,omitempty"`
}

// Status reports the mapping registry and the most recent run.
func Status(opts ...Option) (*StatusInfo, error) {
	rt, err := newRuntime(opts...)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	info := &StatusInfo{
		MappedFiles:    rt.mappings.Len(),
		MappingCorrupt: rt.mappings.Corrupt(),
		Mappings:       rt.mappings.All(),
	}
	runs, err := rt.journal.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		info.LastRun = &runs[0]
	}
	return info, nil
}

// History returns up to limit recorded runs, newest first.
func History(limit int, opts ...Option) ([]journal.RunRow, error) {
	rt, err := newRuntime(opts...)
	if err != nil {
		return nil, err
	}
	defer rt.close()
	return rt.journal.RecentRuns(limit)
}

// RunMCP serves the docbridge tools over MCP stdio transport.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	defer rt.close()

	srv := mcpserver.New(mcpserver.Deps{
		SyncAll: func(ctx context.Context, dryRun bool) (*engine.Report, error) {
			eopts := rt.engineOptions()
			eopts.DryRun = eopts.DryRun || dryRun
			return rt.runAndRecord(ctx, eopts)
		},
		SyncFile: func(ctx context.Context, path string) engine.Outcome {
			return rt.newEngine(rt.engineOptions()).SyncFile(ctx, path)
		},
		PullPage: func(ctx context.Context, pageID, outputPath string) engine.Outcome {
			return rt.newEngine(rt.engineOptions()).PullPage(ctx, pageID, outputPath)
		},
		Mappings: rt.mappings,
		Journal:  rt.journal,
	})

	rt.logger.Info("mcp server starting on stdio")
	return srv.ServeStdio()
}

// RunServe starts the HTTP API with SSE progress events and a file watcher
// that re-syncs changed documents, until a signal or ctx stops it.
func RunServe(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	broker := sse.NewBroker()
	defer broker.Close()

	runner := func(ctx context.Context, eopts engine.Options) (*engine.Report, error) {
		eopts.OnOutcome = func(o engine.Outcome) {
			broker.PublishFileSynced(o.Path, string(o.Status))
		}
		broker.PublishSyncStarted(string(eopts.Mode))
		report, runErr := rt.runAndRecord(ctx, eopts)
		if report != nil {
			broker.PublishSyncFinished(map[string]int{
				"created":   report.Count(engine.StatusCreated),
				"updated":   report.Count(engine.StatusUpdated),
				"skipped":   report.Count(engine.StatusSkipped),
				"conflicts": report.Count(engine.StatusConflict),
				"failed":    report.Count(engine.StatusFailed),
			})
		}
		return report, runErr
	}

	svc := api.NewService(runner, rt.engineOptions(), rt.journal, rt.mappings)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	// cancel stops the watcher once the HTTP server has shut down.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Re-sync files as they change on disk.
	g.Go(func() error {
		return engine.Watch(gCtx, rt.store.Root(), rt.logger, func(paths []string) {
			eng := rt.newEngine(rt.engineOptions())
			for _, p := range paths {
				o := eng.SyncFile(gCtx, p)
				broker.PublishFileSynced(o.Path, string(o.Status))
			}
		})
	})

	g.Go(func() error {
		rt.logger.Info("http server starting", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			rt.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			rt.logger.Info("context cancelled, shutting down")
		}

		shutdownCtx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelTimeout()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		rt.logger.Error("application error", slog.String("error", err.Error()))
		return err
	}
	rt.logger.Info("server stopped")
	return nil
}
