package telegram

import (
	"errors"
	"strconv"
	"strings"
)

// targetKind says how a chat identifier from a send request is resolved.
type targetKind int

const (
	targetUsername targetKind = iota
	targetPhone
	targetID
)

// target is a parsed chat identifier.
type target struct {
	kind     targetKind
	username string
	phone    string
	id       int64
}

var errEmptyChatID = errors.New("chat_id cannot be empty")

// parseTarget classifies a chat identifier: "+<digits>" is a phone number,
// a signed integer is a marked chat id, anything else (with or without a
// leading "@", or a t.me link) is a username.
func parseTarget(chatID string) (target, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return target{}, errEmptyChatID
	}

	if strings.HasPrefix(chatID, "+") {
		digits := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '-', '(', ')':
				return -1
			}
			return r
		}, chatID[1:])
		if _, err := strconv.ParseUint(digits, 10, 64); err == nil {
			return target{kind: targetPhone, phone: digits}, nil
		}
	}

	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return target{kind: targetID, id: id}, nil
	}

	return target{kind: targetUsername, username: chatID}, nil
}
