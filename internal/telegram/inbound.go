package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/tg"

	"github.com/ashureev/tgrelay/internal/domain"
)

// InboundHandler receives every incoming message. Implementations must not
// block: they run on the update dispatch path.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage)
}

// InboundHandlerFunc adapts a function to InboundHandler.
type InboundHandlerFunc func(ctx context.Context, msg domain.InboundMessage)

// HandleInbound calls f(ctx, msg).
func (f InboundHandlerFunc) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	f(ctx, msg)
}

// inboundFromMessage converts a raw message into an InboundMessage. Outgoing,
// service and empty messages are rejected.
func inboundFromMessage(m tg.MessageClass) (domain.InboundMessage, bool) {
	msg, ok := m.(*tg.Message)
	if !ok || msg.Out {
		return domain.InboundMessage{}, false
	}

	chatID := MarkedID(msg.PeerID)
	senderID := chatID
	if from, ok := msg.GetFromID(); ok {
		senderID = MarkedID(from)
	}

	return domain.InboundMessage{
		MessageID: msg.ID,
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      msg.Message,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
	}, true
}

// registerInbound wires new-message updates (private chats, groups and
// channels) into the peer cache and the handler. Handler errors never reach
// the dispatcher.
func registerInbound(d tg.UpdateDispatcher, peers *PeerCache, h InboundHandler) {
	deliver := func(ctx context.Context, e tg.Entities, m tg.MessageClass) error {
		peers.Learn(e)
		if h == nil {
			return nil
		}
		if msg, ok := inboundFromMessage(m); ok {
			h.HandleInbound(ctx, msg)
		}
		return nil
	}

	d.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		return deliver(ctx, e, u.Message)
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		return deliver(ctx, e, u.Message)
	})
}
