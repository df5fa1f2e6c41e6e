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

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/auth"
	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/notes"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/share"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/uploads"
)

// services are the domain components shared by the HTTP and MCP front ends.
type services struct {
	store   *storage.FS
	index   *indexstore.Store
	notes   *notes.Repository
	uploads *uploads.Repository
	share   *share.Service
	search  *search.DB
}

func (s *services) close() {
	if s.search != nil {
		_ = s.search.Close()
	}
}

func newApplication(opts []Option, out *os.File) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		if app.config.App.LogFormat == LogFormatText {
			out = os.Stderr
		}
		app.logger = NewLogger(app.config.App.LogFormat, app.config.App.LogLevel, out)
	}
	return app, nil
}

// newServices opens the data root, the index document and the search
// database. A search database that cannot be opened only disables search.
func newServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*services, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	indexPath := cfg.Storage.IndexPath()
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	index := indexstore.New(indexPath, indexstore.WithLockTimeout(cfg.Storage.LockTimeout))

	svc := &services{
		store: store,
		index: index,
		notes: notes.NewRepository(store, index, logger),
		uploads: uploads.NewRepository(store, index, logger,
			uploads.WithMaxBytes(cfg.Upload.MaxBytes),
			uploads.WithPolicy(uploads.NewPolicy(cfg.Upload.Policy, cfg.Upload.Extensions)),
		),
		share: share.NewService(store, index, logger),
	}

	if cfg.SQLite.Path != "" {
		db, err := search.Open(cfg.SQLite.Path)
		if err != nil {
			logger.Warn("search disabled", slog.String("error", err.Error()))
			return svc, nil
		}
		svc.search = db
		st, err := search.Sync(ctx, db, index, store, logger)
		if err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		} else {
			logger.Info("search index synced", slog.Int("indexed", st.Indexed), slog.Int("removed", st.Removed))
		}
	}
	return svc, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("index_file", cfg.Storage.IndexPath()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("upload_policy", cfg.Upload.Policy),
		slog.Bool("protect_reads", cfg.Auth.ProtectReads),
		slog.String("log_level", cfg.App.LogLevel.String()))

	creds, err := auth.ParseCredentials(cfg.Auth.Users, 0)
	if err != nil {
		return fmt.Errorf("parse auth.users: %w", err)
	}
	if creds.Len() == 0 {
		return errors.New("auth.users is empty: configure at least one user:password pair")
	}
	if cfg.Auth.SessionSecret == "" {
		logger.Warn("auth.session_secret not set: sessions will not survive a restart")
	}
	gate, err := auth.NewGate(creds,
		auth.WithSecret(cfg.Auth.SessionSecret),
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithLoginRate(cfg.Auth.LoginRate.Requests, cfg.Auth.LoginRate.Window),
	)
	if err != nil {
		return err
	}
	defer gate.Close()

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	h := api.NewHandler(api.Deps{
		Notes:        svc.notes,
		Uploads:      svc.uploads,
		Share:        svc.share,
		Gate:         gate,
		Search:       svc.search,
		Events:       broker,
		Logger:       logger,
		PublicURL:    cfg.App.PublicURL,
		ProtectReads: cfg.Auth.ProtectReads,
	})

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
		if _, err := svc.index.Load(); err != nil {
			logger.Error("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(h))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the search index and SSE clients in step with the data root,
	// including writes made by other processes.
	if svc.search != nil {
		w := search.NewWatcher(svc.search, svc.index, svc.store, svc.store.Root(), logger,
			func(st search.Stats, document bool) {
				if document || st.Changed() {
					broker.PublishIndexUpdated(st)
				}
			})
		g.Go(func() error {
			if err := w.Run(gCtx); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
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

		// SSE streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
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

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until stdin is closed. Logs go
// to stderr so they do not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if svc.search != nil {
		w := search.NewWatcher(svc.search, svc.index, svc.store, svc.store.Root(), logger, nil)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	srv := mcpserver.New(mcpserver.Deps{
		Notes:     svc.notes,
		Uploads:   svc.uploads,
		Share:     svc.share,
		Search:    svc.search,
		Logger:    logger,
		PublicURL: cfg.App.PublicURL,
	}, app.version)

	logger.Info("MCP server starting on stdio", slog.String("version", app.version))
	return srv.ServeStdio()
}
