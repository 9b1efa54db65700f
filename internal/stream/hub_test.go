package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/tgrelay/internal/domain"
)

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub(nil)
	sub := h.Register()

	if h.Count() != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", h.Count())
	}

	h.Unregister(sub)
	h.Unregister(sub)

	if h.Count() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", h.Count())
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("Expected events channel to be closed")
	}
}

func TestHub_BroadcastDoesNotBlockOnSlowSubscriber(t *testing.T) {
	h := NewHub(nil)
	slow := h.Register()
	defer h.Unregister(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Broadcast(domain.WebhookPayload{MessageID: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full subscriber")
	}

	if got := len(slow.Events()); got != subscriberBuffer {
		t.Errorf("Expected buffer to hold %d events, got %d", subscriberBuffer, got)
	}
}

func TestHub_ServeStreamsEvents(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close(websocket.StatusNormalClosure, "done") }()
		h.Serve(r.Context(), ws)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = ws.Close(websocket.StatusNormalClosure, "") }()

	deadline := time.Now().Add(2 * time.Second)
	for h.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Count() != 1 {
		t.Fatalf("Expected subscriber to register, got %d", h.Count())
	}

	h.Broadcast(domain.WebhookPayload{MessageID: 42, ChatID: -100123, Text: "hello"})

	var got domain.WebhookPayload
	if err := wsjson.Read(ctx, ws, &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.MessageID != 42 || got.Text != "hello" {
		t.Errorf("Unexpected event: %+v", got)
	}
}
