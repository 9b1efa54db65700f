// tgrelay - Telegram to n8n relay server
package main

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
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gotd/td/session"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/ashureev/tgrelay/internal/api"
	"github.com/ashureev/tgrelay/internal/config"
	"github.com/ashureev/tgrelay/internal/forwarder"
	"github.com/ashureev/tgrelay/internal/middleware"
	"github.com/ashureev/tgrelay/internal/relay"
	"github.com/ashureev/tgrelay/internal/store"
	"github.com/ashureev/tgrelay/internal/stream"
	"github.com/ashureev/tgrelay/internal/telegram"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil {
		slog.Info("No .env file found, using environment variables", "path", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	if cfg.AuthTokenIsPlaceholder() {
		slog.Warn("API_AUTH_TOKEN is still the default placeholder; set a real secret")
	}
	if !cfg.ForwardingEnabled() {
		slog.Warn("N8N_WEBHOOK_URL not set; inbound messages will not be forwarded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session storage: SQLite when configured, otherwise in memory.
	var (
		storage session.Storage
		pinger  api.Pinger
	)
	if cfg.SessionDBPath != "" {
		repo, err := store.NewSQLite(cfg.SessionDBPath)
		if err != nil {
			slog.Error("Failed to initialize session store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close session store", "error", closeErr)
			}
		}()
		storage = store.NewSessionStorage(repo, store.DefaultSessionName)
		pinger = repo
		slog.Info("Session store opened", "path", cfg.SessionDBPath)
	} else {
		storage = telegram.NewMemorySession()
	}

	seeded, err := telegram.SeedStorage(ctx, storage, cfg.Session)
	if err != nil {
		slog.Error("Failed to load TG_SESSION", "error", err)
		os.Exit(1)
	}
	if seeded {
		slog.Info("Session loaded from TG_SESSION")
	}

	// Initialize services.
	hub := stream.NewHub(logger)
	fwd := forwarder.New(cfg.WebhookURL, cfg.WebhookTimeout, nil)
	svc := relay.New(fwd, hub, logger)

	mgr := telegram.NewManager(telegram.Options{
		AppID:   cfg.APIID,
		AppHash: cfg.APIHash,
		Storage: storage,
		Inbound: svc,
		Logger:  logger,
	})

	conn, err := mgr.Establish(ctx)
	if err != nil {
		if telegram.IsAuthenticationError(err) {
			slog.Error("Telegram session is missing or invalid; run the login command to create one", "error", err)
		} else {
			slog.Error("Failed to connect to Telegram", "error", err)
		}
		os.Exit(1)
	}
	if self := conn.Self(); self != nil {
		slog.Info("Telegram client ready", "user_id", self.ID, "username", self.Username)
	}

	handler := api.NewHandler(conn, hub, pinger, cfg.AuthToken, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	handler.RegisterRoutes(r)

	// No WriteTimeout: /ws/events is long-lived.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "forwarding", cfg.ForwardingEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutdown requested")
	case <-conn.Done():
		// conn shares ctx, so a signal can surface here first.
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "shutdown requested")
			break
		}
		slog.Error("Telegram connection stopped", "error", conn.Wait())
		exitCode = 1
	case err := <-serverErr:
		slog.Error("Server failed", "error", err)
		exitCode = 1
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		exitCode = 1
	}
	if err := conn.Close(); err != nil {
		slog.Error("Failed to close Telegram connection", "error", err)
	}

	slog.Info("Server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
