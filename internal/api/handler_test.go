package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/tgrelay/internal/domain"
	"github.com/ashureev/tgrelay/internal/stream"
	"github.com/ashureev/tgrelay/internal/telegram"
)

type sentMessage struct {
	chatID string
	text   string
}

type fakeMessenger struct {
	mu        sync.Mutex
	connected bool
	err       error
	sent      []sentMessage
}

func (f *fakeMessenger) IsConnected() bool {
	return f.connected
}

func (f *fakeMessenger) SendText(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return f.err
}

func (f *fakeMessenger) calls() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doSend(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusInternalServerError, "boom")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if got := decodeBody(t, w)["detail"]; got != "boom" {
		t.Errorf("Expected detail boom, got %v", got)
	}
}

func TestSendSuccess(t *testing.T) {
	tg := &fakeMessenger{connected: true}
	h := newRouter(NewHandler(tg, nil, nil, "secret", nil))

	rr := doSend(t, h, "/send?token=secret", `{"chat_id":"@alice","text":"hi"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["ok"]; got != true {
		t.Errorf("Expected ok=true, got %v", got)
	}

	calls := tg.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly one send, got %d", len(calls))
	}
	if calls[0].chatID != "@alice" || calls[0].text != "hi" {
		t.Errorf("Unexpected send arguments: %+v", calls[0])
	}
}

func TestSendRejectsWrongToken(t *testing.T) {
	bodies := []string{
		`{"chat_id":"@alice","text":"hi"}`,
		`not json`,
		``,
	}
	for _, body := range bodies {
		tg := &fakeMessenger{connected: true}
		h := newRouter(NewHandler(tg, nil, nil, "secret", nil))

		for _, target := range []string{"/send?token=wrong", "/send"} {
			rr := doSend(t, h, target, body)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("%s with body %q: expected 401, got %d", target, body, rr.Code)
			}
			if got := decodeBody(t, rr)["detail"]; got != "Invalid token" {
				t.Errorf("Expected detail Invalid token, got %v", got)
			}
		}
		if n := len(tg.calls()); n != 0 {
			t.Errorf("Expected no sends on bad token, got %d", n)
		}
	}
}

func TestSendNotReady(t *testing.T) {
	tests := []struct {
		name string
		tg   Messenger
	}{
		{"no connection", nil},
		{"typed nil connection", (*telegram.Conn)(nil)},
		{"disconnected", &fakeMessenger{connected: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(NewHandler(tt.tg, nil, nil, "secret", nil))

			rr := doSend(t, h, "/send?token=secret", `{"chat_id":"@alice","text":"hi"}`)

			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("Expected status 503, got %d", rr.Code)
			}
			detail, _ := decodeBody(t, rr)["detail"].(string)
			if !strings.Contains(detail, "not ready") {
				t.Errorf("Expected not ready detail, got %q", detail)
			}
			if fm, ok := tt.tg.(*fakeMessenger); ok && len(fm.calls()) != 0 {
				t.Error("Expected no send attempt when not ready")
			}
		})
	}
}

func TestSendBackendError(t *testing.T) {
	tg := &fakeMessenger{connected: true, err: errors.New("PEER_ID_INVALID")}
	h := newRouter(NewHandler(tg, nil, nil, "secret", nil))

	rr := doSend(t, h, "/send?token=secret", `{"chat_id":"12345","text":"hi"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["detail"]; got != "PEER_ID_INVALID" {
		t.Errorf("Expected backend error as detail, got %v", got)
	}
}

func TestSendConnectionDropped(t *testing.T) {
	tg := &fakeMessenger{connected: true, err: telegram.ErrNotReady}
	h := newRouter(NewHandler(tg, nil, nil, "secret", nil))

	rr := doSend(t, h, "/send?token=secret", `{"chat_id":"@alice","text":"hi"}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}
}

func TestSendMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"wrong type", `{"chat_id":12345,"text":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := &fakeMessenger{connected: true}
			h := newRouter(NewHandler(tg, nil, nil, "secret", nil))

			rr := doSend(t, h, "/send?token=secret", tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
			if len(tg.calls()) != 0 {
				t.Error("Expected no send for malformed body")
			}
		})
	}
}

func TestSendUnusableMessage(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"missing chat", `{"text":"hi"}`, "chat_id cannot be empty"},
		{"blank chat", `{"chat_id":"  ","text":"hi"}`, "chat_id cannot be empty"},
		{"missing text", `{"chat_id":"@alice"}`, "text cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := &fakeMessenger{connected: true}
			h := newRouter(NewHandler(tg, nil, nil, "secret", nil))

			rr := doSend(t, h, "/send?token=secret", tt.body)

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", rr.Code)
			}
			if got := decodeBody(t, rr)["detail"]; got != tt.detail {
				t.Errorf("Expected detail %q, got %v", tt.detail, got)
			}
			if len(tg.calls()) != 0 {
				t.Error("Expected no send attempt")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		tg         Messenger
		store      Pinger
		wantStatus int
	}{
		{"ready", &fakeMessenger{connected: true}, nil, http.StatusOK},
		{"ready with store", &fakeMessenger{connected: true}, fakePinger{}, http.StatusOK},
		{"telegram down", nil, nil, http.StatusServiceUnavailable},
		{"store down", &fakeMessenger{connected: true}, fakePinger{err: errors.New("disk I/O error")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(NewHandler(tt.tg, nil, tt.store, "secret", nil))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestEventsRequiresToken(t *testing.T) {
	h := newRouter(NewHandler(&fakeMessenger{connected: true}, stream.NewHub(nil), nil, "secret", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/events?token=wrong", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestEventsStreamsInbound(t *testing.T) {
	hub := stream.NewHub(nil)
	srv := httptest.NewServer(newRouter(NewHandler(&fakeMessenger{connected: true}, hub, nil, "secret", nil)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?token=secret"
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("Expected subscriber to register, got %d", hub.Count())
	}

	want := domain.WebhookPayload{MessageID: 42, ChatID: -100123, SenderID: 55, Text: "hello", Date: "2024-01-02T03:04:05Z"}
	hub.Broadcast(want)

	var got domain.WebhookPayload
	if err := wsjson.Read(ctx, ws, &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}
