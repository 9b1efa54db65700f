package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const healthCheckTimeout = 5 * time.Second

// Health returns the health status of the relay and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "telegram": "ok"}
	statusCode := http.StatusOK

	if !h.ready() {
		checks["telegram"] = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			checks["session_store"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["session_store"] = "ok"
		}
	}

	status := "healthy"
	if statusCode != http.StatusOK {
		status = "degraded"
	}
	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// Events upgrades to a websocket that streams every inbound message as it
// arrives, in the same JSON shape as the webhook payload.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.hub.Serve(r.Context(), ws)
}
