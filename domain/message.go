// Package domain contains core concepts of the chat system.
// This file defines Message values and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"chat-sync/errors"
	"fmt"
	"strings"
	"time"
)

// Message represents an immutable chat message.
type Message struct {
	ID        string        `validate:"required"`
	SentBy    ParticipantID `validate:"required"`
	Content   string        `validate:"required"`
	CreatedAt time.Time
}

// NewMessage trims the raw text and stamps the message with the clock.
// An empty text after trimming returns ErrEmptyContent without consuming a tick.
func NewMessage(sender ParticipantID, rawText string, clock Clock) (Message, error) {
	content := strings.TrimSpace(rawText)
	if content == "" {
		return Message{}, errors.ErrEmptyContent
	}
	if err := sender.Validate(); err != nil {
		return Message{}, err
	}
	at := clock.Now()
	msg := Message{
		ID:        NewMessageID(sender, at),
		SentBy:    sender,
		Content:   content,
		CreatedAt: at,
	}
	if err := validate.Struct(msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	return msg, nil
}

// NewMessageID formats the id as "{unix_nano_padded}-{sender}".
// The 19-digit padding keeps lexicographic order aligned with time,
// the sender suffix separates two senders stamping the same nanosecond.
func NewMessageID(sender ParticipantID, at time.Time) string {
	return fmt.Sprintf("%019d-%s", at.UnixNano(), sender)
}

// Compare orders messages by CreatedAt, then by ID.
func Compare(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
