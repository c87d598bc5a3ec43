// Shopping assistant backend: simulated agent runs over HTTP and a push channel.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/shopping-assistant/internal/agent"
	"github.com/ashureev/shopping-assistant/internal/api"
	"github.com/ashureev/shopping-assistant/internal/config"
	"github.com/ashureev/shopping-assistant/internal/metrics"
	"github.com/ashureev/shopping-assistant/internal/middleware"
	"github.com/ashureev/shopping-assistant/internal/store"
	"github.com/ashureev/shopping-assistant/internal/stream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	catalog, err := agent.DefaultCatalog()
	if err != nil {
		return err
	}

	hub := stream.NewHubWithQueueSize(logger, cfg.StreamQueueSize)
	defer hub.CloseAll()

	runner := agent.NewRunner(catalog, hub,
		agent.WithStepDelay(cfg.StepDelay),
		agent.WithRecorder(repo),
		agent.WithLogger(logger),
	)
	defer runner.Close()

	// Initialize handlers.
	base := api.NewHandler(runner, catalog, repo)
	healthHandler := api.NewHealthHandler(repo)
	assistantHandler := api.NewAssistantHandler(base)
	shoppingHandler := api.NewShoppingHandler(base)
	wsHandler := stream.NewHandler(hub, cfg.StreamOrigin(), cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)
	assistantHandler.RegisterRoutes(r)
	shoppingHandler.RegisterRoutes(r)

	// Push channel.
	r.Get("/ws", wsHandler.ServeHTTP)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	// WriteTimeout stays 0 so the push channel is not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		store.StartRetentionWorker(gCtx, repo, cfg.RetentionInterval, cfg.RetentionMaxAge)
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		runner.Stop()
		hub.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
