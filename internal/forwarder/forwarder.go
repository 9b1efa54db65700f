// Package forwarder posts inbound messages to the automation webhook.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/tgrelay/internal/domain"
)

// DefaultTimeout bounds a single webhook POST.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of one forward attempt. Exactly one of Skipped,
// a nil Err (delivered) or a non-nil Err (failed) applies.
type Result struct {
	Skipped    bool
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Delivered reports whether the webhook accepted the message.
func (r Result) Delivered() bool {
	return !r.Skipped && r.Err == nil
}

// Forwarder delivers inbound messages to a webhook. Forwarding is best
// effort: failures are reported in the Result and never retried.
type Forwarder struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// New creates a forwarder. An empty url disables forwarding; a nil client
// uses a dedicated http.Client.
func New(url string, timeout time.Duration, client *http.Client) *Forwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Forwarder{url: url, timeout: timeout, client: client}
}

// Enabled reports whether a webhook URL is configured.
func (f *Forwarder) Enabled() bool {
	return f != nil && f.url != ""
}

// Forward posts msg to the webhook. It never panics and never returns an
// error directly: callers inspect and log the Result.
func (f *Forwarder) Forward(ctx context.Context, msg domain.InboundMessage) (res Result) {
	if !f.Enabled() {
		return Result{Skipped: true}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("forward panicked: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	body, err := json.Marshal(msg.Payload())
	if err != nil {
		return Result{Err: fmt.Errorf("encode payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("post webhook: %w", err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("failed to close webhook response body", "error", closeErr)
		}
	}()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("webhook responded %s", resp.Status)}
	}
	return Result{StatusCode: resp.StatusCode}
}
