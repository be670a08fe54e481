package gateway

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"time"

	"github.com/samber/lo"
)

// Frame types
const (
	FrameEdit       = "edit"
	FrameSend       = "send"
	FrameMessages   = "messages"
	FrameTyping     = "typing"
	FrameConnection = "connection"
	FrameSent       = "sent"
	FrameError      = "error"
)

// Inbound is what a client writes: composer edits and sends.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Outbound is what the gateway pushes to the client.
type Outbound struct {
	Type      string         `json:"type"`
	Room      string         `json:"room,omitempty"`
	Messages  []MessageFrame `json:"messages"`
	Typing    *bool          `json:"typing,omitempty"`
	Connected *bool          `json:"connected,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type MessageFrame struct {
	ID        string    `json:"id"`
	SentBy    string    `json:"sentBy"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Mine      bool      `json:"mine"`
}

func toFrame(self domain.ParticipantID, e event.DomainEvent) (Outbound, bool) {
	room := string(e.RoomID())
	switch evt := e.(type) {
	case event.MessagesReplaced:
		return Outbound{
			Type: FrameMessages,
			Room: room,
			Messages: lo.Map(evt.Messages, func(m domain.Message, _ int) MessageFrame {
				return MessageFrame{
					ID:        m.ID,
					SentBy:    string(m.SentBy),
					Content:   m.Content,
					CreatedAt: m.CreatedAt,
					Mine:      m.SentBy == self,
				}
			}),
		}, true
	case event.RemoteTypingChanged:
		return Outbound{Type: FrameTyping, Room: room, Typing: lo.ToPtr(evt.Typing)}, true
	case event.ConnectionChanged:
		return Outbound{Type: FrameConnection, Room: room, Connected: lo.ToPtr(evt.Connected)}, true
	default:
		return Outbound{}, false
	}
}

// frameSink forwards session events to the connection's write pump.
// A client too slow to drain its frames holds the session loop for at most the sink timeout.
type frameSink struct {
	self   domain.ParticipantID
	frames chan<- Outbound
}

func (s frameSink) Consume(ctx context.Context, e event.DomainEvent) error {
	frame, ok := toFrame(s.self, e)
	if !ok {
		return nil
	}
	select {
	case s.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
