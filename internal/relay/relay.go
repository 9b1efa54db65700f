// Package relay fans inbound Telegram messages out to the webhook and the
// live event stream.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/tgrelay/internal/domain"
	"github.com/ashureev/tgrelay/internal/forwarder"
)

// Forwarder delivers a message to the webhook.
type Forwarder interface {
	Enabled() bool
	Forward(ctx context.Context, msg domain.InboundMessage) forwarder.Result
}

// Broadcaster publishes events to live subscribers.
type Broadcaster interface {
	Broadcast(evt domain.WebhookPayload)
}

// Service handles inbound messages. Each webhook POST runs in its own
// goroutine so a slow webhook never delays later messages or the update
// loop; delivery order is therefore not guaranteed.
type Service struct {
	fwd    Forwarder
	events Broadcaster
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a relay service. fwd and events may be nil.
func New(fwd Forwarder, events Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fwd: fwd, events: events, logger: logger.With("component", "relay")}
}

// HandleInbound implements telegram.InboundHandler.
func (s *Service) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	if s.events != nil {
		s.events.Broadcast(msg.Payload())
	}

	if s.fwd == nil || !s.fwd.Enabled() {
		return
	}

	// The update context ends with the connection; forwards are not drained.
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.report(msg, s.fwd.Forward(ctx, msg))
	}()
}

func (s *Service) report(msg domain.InboundMessage, res forwarder.Result) {
	switch {
	case res.Skipped:
	case res.Err != nil:
		s.logger.Warn("POST to webhook failed",
			"message_id", msg.MessageID,
			"chat_id", msg.ChatID,
			"status", res.StatusCode,
			"error", res.Err)
	default:
		s.logger.Debug("Message forwarded",
			"message_id", msg.MessageID,
			"chat_id", msg.ChatID,
			"status", res.StatusCode,
			"duration", res.Duration)
	}
}

// Wait blocks until all in-flight forwards have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
