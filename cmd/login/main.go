// tgrelay-login performs the one-time interactive Telegram login and prints
// the session credential the relay server reads from TG_SESSION.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/ashureev/tgrelay/internal/config"
	"github.com/ashureev/tgrelay/internal/store"
	"github.com/ashureev/tgrelay/internal/telegram"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	phone := flag.String("phone", "", "phone number to log in with; prompted when empty")
	passwordPrompt := flag.Bool("password-prompt", true, "read the two-step verification password without echo")
	logout := flag.Bool("logout", false, "delete the session stored in SESSION_DB_PATH and exit")
	flag.Parse()

	// Logs go to stderr so stdout carries only the credential.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil {
		slog.Debug("No .env file found, using environment variables", "path", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *logout {
		if err := forgetCredential(ctx, cfg.SessionDBPath); err != nil {
			slog.Error("Logout failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, newTerminalPrompter(os.Stdin, os.Stderr, *phone, *passwordPrompt), logger); err != nil {
		slog.Error("Login failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, p telegram.Prompter, logger *slog.Logger) error {
	mgr := telegram.NewManager(telegram.Options{
		AppID:   cfg.APIID,
		AppHash: cfg.APIHash,
		Logger:  logger,
	})

	credential, err := mgr.Login(ctx, p)
	if err != nil {
		return err
	}

	fmt.Println("Your session credential (store as TG_SESSION):")
	fmt.Println(credential)

	if cfg.SessionDBPath == "" {
		return nil
	}
	return saveCredential(ctx, cfg.SessionDBPath, credential)
}

// saveCredential replaces the stored session so the server picks up the new
// login even when TG_SESSION still holds an older one.
func saveCredential(ctx context.Context, path, credential string) error {
	data, err := telegram.DecodeCredential(ctx, credential)
	if err != nil {
		return err
	}

	repo, err := store.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := repo.StoreSession(ctx, store.DefaultSessionName, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Session saved to %s\n", path)
	return nil
}

// forgetCredential removes the stored session so the server refuses to start
// until a new login is saved.
func forgetCredential(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("SESSION_DB_PATH is not set; remove TG_SESSION from the environment instead")
	}

	repo, err := store.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := repo.DeleteSession(ctx, store.DefaultSessionName); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Session removed from %s\n", path)
	return nil
}
