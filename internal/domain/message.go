// Package domain contains core domain types for the relay.
package domain

import (
	"time"
)

// InboundMessage is a message received by the Telegram account. It is
// forwarded once and then discarded.
type InboundMessage struct {
	MessageID int
	ChatID    int64
	SenderID  int64
	Text      string
	Date      time.Time
}

// Payload returns the JSON body posted to the webhook for this message.
func (m InboundMessage) Payload() WebhookPayload {
	return WebhookPayload{
		MessageID: m.MessageID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Date:      m.Date.UTC().Format(time.RFC3339),
	}
}

// WebhookPayload is the wire format of a forwarded message.
type WebhookPayload struct {
	MessageID int    `json:"message_id"`
	ChatID    int64  `json:"chat_id"`
	SenderID  int64  `json:"sender_id"`
	Text      string `json:"text"`
	Date      string `json:"date"`
}

// SendRequest is the body of an outbound send request. ChatID may be a
// username, a phone number or a numeric chat identifier.
type SendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}
