package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ashureev/tgrelay/internal/domain"
	"github.com/ashureev/tgrelay/internal/telegram"
)

const notReadyDetail = "Telegram client not ready"

// Send relays a text message through the Telegram account. The token has
// already been checked by middleware.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		Error(w, http.StatusServiceUnavailable, notReadyDetail)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req domain.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// An unusable chat or empty text is a failed send, not a malformed request.
	if strings.TrimSpace(req.ChatID) == "" {
		Error(w, http.StatusInternalServerError, "chat_id cannot be empty")
		return
	}
	if req.Text == "" {
		Error(w, http.StatusInternalServerError, "text cannot be empty")
		return
	}

	if err := h.tg.SendText(r.Context(), req.ChatID, req.Text); err != nil {
		if errors.Is(err, telegram.ErrNotReady) {
			Error(w, http.StatusServiceUnavailable, notReadyDetail)
			return
		}
		h.logger.Error("Failed to send message", "chat_id", req.ChatID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("Message sent", "chat_id", req.ChatID)
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
