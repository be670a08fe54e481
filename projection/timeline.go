// Package projection builds local read models from session events.
// Does not emit events or talk to the store.
package projection

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Timeline is what a chat surface renders: the ordered messages of one room,
// whether the other participant is typing and whether the room is connected.
// It can be read from any goroutine.
type Timeline struct {
	Owner domain.ParticipantID

	mu           sync.RWMutex
	messages     []domain.Message
	remoteTyping bool
	connected    bool
	changes      chan struct{}
}

func NewTimeline(owner domain.ParticipantID) *Timeline {
	return &Timeline{
		Owner:   owner,
		changes: make(chan struct{}, 1),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	switch evt := e.(type) {
	case event.MessagesReplaced:
		t.messages = evt.Messages
	case event.RemoteTypingChanged:
		t.remoteTyping = evt.Typing
	case event.ConnectionChanged:
		t.connected = evt.Connected
	default:
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	// Coalesce: a reader only needs to know something changed since it last looked.
	select {
	case t.changes <- struct{}{}:
	default:
	}
	return nil
}

// Changes fires after one or more events were consumed.
func (t *Timeline) Changes() <-chan struct{} {
	return t.changes
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// Cursor hands out every message of the timeline once, in sequence order.
// A message sorting before ones already handed out is still handed out.
// A cursor belongs to a single reader.
type Cursor struct {
	timeline *Timeline
	seen     map[string]struct{}
}

func (t *Timeline) Cursor() *Cursor {
	return &Cursor{timeline: t, seen: make(map[string]struct{})}
}

// Next returns the messages not returned yet.
func (c *Cursor) Next() []domain.Message {
	fresh := lo.Filter(c.timeline.Messages(), func(m domain.Message, _ int) bool {
		_, seen := c.seen[m.ID]
		return !seen
	})
	for _, m := range fresh {
		c.seen[m.ID] = struct{}{}
	}
	return fresh
}

func (t *Timeline) RemoteTyping() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.remoteTyping
}

func (t *Timeline) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// IsMine tells the surface which side of the conversation a message goes on.
func (t *Timeline) IsMine(m domain.Message) bool {
	return m.SentBy == t.Owner
}
