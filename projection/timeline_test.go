package projection

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const room = domain.RoomID("alice_bob")

func message(sender domain.ParticipantID, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        domain.NewMessageID(sender, at),
		SentBy:    sender,
		Content:   content,
		CreatedAt: at,
	}
}

func TestTimeline_Consume_MessagesReplaced(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	ctx := context.Background()
	now := time.Now().UTC()

	m1 := message("alice", "Hello Bob", now)
	m2 := message("bob", "Hi Alice", now.Add(time.Second))

	req.NoError(timeline.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{m1}}))
	req.NoError(timeline.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{m1, m2}}))

	messages := timeline.Messages()
	req.Len(messages, 2)
	req.True(timeline.IsMine(messages[0]))
	req.False(timeline.IsMine(messages[1]))
}

func TestCursor_Hands_Out_Late_Messages(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	cursor := timeline.Cursor()
	ctx := context.Background()
	now := time.Now().UTC()

	m1 := message("alice", "one", now)
	m2 := message("bob", "two", now.Add(time.Second))
	m3 := message("alice", "three", now.Add(2*time.Second))

	// Given m3 was seen before m2 reached the store
	req.NoError(timeline.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{m1, m3}}))
	req.Equal([]domain.Message{m1, m3}, cursor.Next())

	// When m2 shows up in between
	req.NoError(timeline.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{m1, m2, m3}}))

	// Then it is handed out, and only once
	req.Equal([]domain.Message{m2}, cursor.Next())
	req.Empty(cursor.Next())
}

func TestCursor_Readers_Are_Independent(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	m1 := message("bob", "hi", time.Now().UTC())
	req.NoError(timeline.Consume(context.Background(), event.MessagesReplaced{Room: room, Messages: []domain.Message{m1}}))

	first, second := timeline.Cursor(), timeline.Cursor()

	req.Equal([]domain.Message{m1}, first.Next())
	req.Equal([]domain.Message{m1}, second.Next())
}

func TestTimeline_Tracks_Typing_And_Connection(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.RemoteTypingChanged{Room: room, Typing: true}))
	req.NoError(timeline.Consume(ctx, event.ConnectionChanged{Room: room, Connected: true}))
	req.True(timeline.RemoteTyping())
	req.True(timeline.Connected())

	req.NoError(timeline.Consume(ctx, event.ConnectionChanged{Room: room, Connected: false}))
	req.False(timeline.Connected())
}

func TestTimeline_Changes_Are_Coalesced(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	ctx := context.Background()

	// When several events are consumed before anyone looks
	for range 3 {
		req.NoError(timeline.Consume(ctx, event.RemoteTypingChanged{Room: room, Typing: true}))
	}

	// Then a single notification is pending
	select {
	case <-timeline.Changes():
	default:
		req.Fail("expected a change notification")
	}
	select {
	case <-timeline.Changes():
		req.Fail("notifications should be coalesced")
	default:
	}
}
