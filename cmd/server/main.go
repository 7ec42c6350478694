package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sgheorghe/moviekeeper/internal/server/handlers"
	"github.com/sgheorghe/moviekeeper/internal/server/hub"
	"github.com/sgheorghe/moviekeeper/internal/server/middleware"
	"github.com/sgheorghe/moviekeeper/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", envOr("MOVIEKEEPER_ADDR", ":3000"), "Listen address")
	dbPath := flag.String("db", envOr("MOVIEKEEPER_DB", "moviekeeper.db"), "Path to SQLite database")
	jwtSecret := flag.String("jwt-secret", os.Getenv("MOVIEKEEPER_JWT_SECRET"), "JWT signing secret (required)")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Access token lifetime")
	latency := flag.Duration("latency", 0, "Artificial response delay for offline testing")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *jwtSecret == "" {
		logger.Error("missing -jwt-secret flag (or MOVIEKEEPER_JWT_SECRET)")
		os.Exit(1)
	}

	if err := run(logger, *addr, *dbPath, *jwtSecret, *tokenTTL, *latency); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, dbPath, jwtSecret string, tokenTTL, latency time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	jwtConfig := handlers.JWTConfig{
		Secret:   []byte(jwtSecret),
		TokenTTL: tokenTTL,
	}

	pushHub := hub.New(logger, jwtConfig)
	defer pushHub.Close()

	authHandler := handlers.NewAuthHandler(logger, store, jwtConfig)
	itemsHandler := handlers.NewItemsHandler(logger, store, pushHub)
	healthHandler := handlers.NewHealthHandler(logger)

	requireAuth := middleware.AuthMiddleware(logger, jwtConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/v1/ping", healthHandler.Ping)
	mux.Handle("GET /api/v1/items", requireAuth(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/v1/items", requireAuth(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/v1/items/{id}", requireAuth(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/v1/items/{id}", requireAuth(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("GET /ws", pushHub)

	var handler http.Handler = mux
	handler = middleware.LatencyMiddleware(latency)(handler)
	handler = middleware.RateLimitMiddleware(300, time.Minute, logger)(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout не задан: websocket-соединения живут дольше
		// любого разумного таймаута
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", addr),
			slog.String("db", dbPath),
			slog.String("version", Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down...")

	pushHub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("MovieKeeper Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
