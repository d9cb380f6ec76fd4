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

	"github.com/halvard/munin/internal/api"
	"github.com/halvard/munin/internal/ingest"
	"github.com/halvard/munin/internal/membank"
	"github.com/halvard/munin/internal/recordstore"
	"github.com/halvard/munin/internal/schema"
	"github.com/halvard/munin/internal/semindex"
	"github.com/halvard/munin/internal/sse"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("vector_path", cfg.Index.VectorPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker for block change events.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	bank, closer, err := BuildBank(cfg, logger, broker.PublishBlockEvent)
	if err != nil {
		return err
	}
	defer closer()

	apiRouter := api.NewRouter(bank, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		if !bank.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox ingest watcher when enabled.
	if cfg.Ingest.Enabled {
		inbox, err := ingest.NewInbox(cfg.Ingest.Inbox)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return ingest.Watch(gCtx, bank, inbox, logger)
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// BuildBank wires the record store, secondary index, schema registry and
// memory bank from configuration. The returned closer releases the store
// handles.
func BuildBank(cfg *Config, logger *slog.Logger, notify func(op, id string)) (*membank.Bank, func(), error) {
	registry := schema.NewRegistry()
	if err := schema.RegisterBuiltins(registry); err != nil {
		return nil, nil, fmt.Errorf("register builtin schemas: %w", err)
	}

	store, err := recordstore.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init record store: %w", err)
	}

	// An unreachable secondary index is not fatal: the bank comes up
	// not-ready and every operation fails fast until a restart fixes it.
	var index semindex.Indexer
	idx, err := semindex.New(semindex.Config{
		VectorPath: cfg.Index.VectorPath,
		GraphDSN:   cfg.Index.GraphPath,
		Embedder:   semindex.NewLocalEmbedder(cfg.Index.Dimensions),
	}, logger)
	if err != nil {
		logger.Error("secondary index unavailable, serving not-ready",
			slog.String("error", err.Error()))
	} else {
		index = idx
	}

	opts := []membank.Option{membank.WithLogger(logger)}
	if notify != nil {
		opts = append(opts, membank.WithNotify(notify))
	}
	bank := membank.New(store, index, registry, opts...)

	if bank.Ready() {
		if err := bank.SyncSchemas(context.Background()); err != nil {
			store.Close()
			idx.Close()
			return nil, nil, fmt.Errorf("sync schemas: %w", err)
		}
	}

	closer := func() {
		if idx != nil {
			if err := idx.Close(); err != nil {
				logger.Warn("close index failed", slog.String("error", err.Error()))
			}
		}
		if err := store.Close(); err != nil {
			logger.Warn("close store failed", slog.String("error", err.Error()))
		}
	}
	return bank, closer, nil
}
