// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/contacts/internal/api"
	"github.com/starford/contacts/internal/contactstore"
	"github.com/starford/contacts/internal/mcpserver"
	"github.com/starford/contacts/internal/seed"
	"github.com/starford/contacts/internal/sse"
	"github.com/starford/contacts/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured provider, loads the store and applies the
// seed file when the store starts out empty.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...contactstore.Option) (*contactstore.Store, storage.Provider, error) {
	provider, err := storage.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	opts = append([]contactstore.Option{contactstore.WithLogger(logger)}, opts...)
	store, err := contactstore.New(ctx, provider, opts...)
	if err != nil {
		_ = provider.Close()
		return nil, nil, fmt.Errorf("init contact store: %w", err)
	}

	if cfg.Store.SeedFile != "" {
		entries, err := seed.Load(cfg.Store.SeedFile)
		if err != nil {
			_ = provider.Close()
			return nil, nil, fmt.Errorf("load seed file: %w", err)
		}
		n, err := store.Seed(ctx, entries)
		if err != nil {
			_ = provider.Close()
			return nil, nil, fmt.Errorf("seed contacts: %w", err)
		}
		if n > 0 {
			logger.Info("Seeded contacts", slog.Int("count", n), slog.String("seed_file", cfg.Store.SeedFile))
		}
	}

	return store, provider, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("avatars_path", cfg.Avatars.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker fed by store change notifications.
	broker := sse.NewBroker(cfg.Events.ListThrottle)
	defer broker.Close()

	store, provider, err := openStore(ctx, cfg, logger, contactstore.WithOnChange(broker.PublishContactEvent))
	if err != nil {
		return err
	}
	defer provider.Close()

	logger.Info("Contacts loaded", slog.Int("count", store.Len()))

	if err := os.MkdirAll(cfg.Avatars.Path, 0o755); err != nil {
		return fmt.Errorf("create avatars dir: %w", err)
	}
	avatars := api.NewAvatarHandler(cfg.Avatars.Path)

	apiRouter := api.NewRouter(store, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, avatars)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthHandler)
	r.Get("/health/ready", healthHandler)

	// Avatars are referenced from <img> tags, so they are served without auth.
	r.Get("/avatars/{filename}", avatars.ServeFile)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}
	// Closing the broker ends open event streams so Shutdown does not wait on them.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the store when another process rewrites the contacts file.
	if file, ok := provider.(*storage.JSONFile); ok && cfg.Store.Watch {
		g.Go(func() error {
			if err := contactstore.Watch(gCtx, store, file, logger); err != nil {
				logger.Warn("file watcher stopped", slog.String("error", err.Error()))
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

// RunMCP serves the contact store as MCP tools over stdio. Logs go to
// stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	store, provider, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	logger.Info("MCP server starting",
		slog.String("store_driver", cfg.Store.Driver),
		slog.Int("contacts", store.Len()))

	if err := mcpserver.New(store, cfg.Avatars.Path).ServeStdio(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
