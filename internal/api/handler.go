// Package api provides HTTP handlers for the relay API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/tgrelay/internal/middleware"
	"github.com/ashureev/tgrelay/internal/stream"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Messenger is the live Telegram connection as seen by the HTTP layer.
type Messenger interface {
	IsConnected() bool
	SendText(ctx context.Context, chatID, text string) error
}

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the relay endpoints. All dependencies are passed in at
// startup; nothing is read from package state.
type Handler struct {
	tg        Messenger
	hub       *stream.Hub
	store     Pinger
	authToken string
	logger    *slog.Logger
}

// NewHandler creates a new Handler. hub and store may be nil.
func NewHandler(tg Messenger, hub *stream.Hub, store Pinger, authToken string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tg:        tg,
		hub:       hub,
		store:     store,
		authToken: authToken,
		logger:    logger,
	}
}

// RegisterRoutes registers the relay routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(h.authToken))
		r.Post("/send", h.Send)
		if h.hub != nil {
			r.Get("/ws/events", h.Events)
		}
	})
}

// ready reports whether the Telegram connection can be used.
func (h *Handler) ready() bool {
	return h.tg != nil && h.tg.IsConnected()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response with a human-readable detail.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, map[string]string{"detail": detail})
}
