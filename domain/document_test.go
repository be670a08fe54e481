package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeRoom_Reads_Messages_And_Typing(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	msg := message("u1", "Hello", at)

	fields := map[string]any{
		FieldRoomID:     "u1_u2",
		FieldCreatedAt:  at,
		FieldTypingUser: "u2",
		FieldMessages:   []any{MessageFields(msg)},
	}

	room, skipped := DecodeRoom("u1_u2", fields)

	req.Zero(skipped)
	req.Equal(RoomID("u1_u2"), room.ID)
	req.Equal(at, room.CreatedAt)
	req.True(room.IsTyping("u2"))
	req.Equal([]Message{msg}, room.Messages)
}

func TestDecodeRoom_Accepts_String_Timestamps(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)

	fields := map[string]any{
		FieldMessages: []any{map[string]any{
			FieldMessageID: "1",
			FieldSentBy:    "u1",
			FieldContent:   "Hello",
			FieldCreatedAt: at.Format(time.RFC3339Nano),
		}},
	}

	room, skipped := DecodeRoom("u1_u2", fields)

	req.Zero(skipped)
	req.Len(room.Messages, 1)
	req.Equal(at, room.Messages[0].CreatedAt)
}

func TestDecodeRoom_Skips_Malformed_Messages(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	fields := map[string]any{
		FieldTypingUser: nil,
		FieldMessages: []any{
			"not a message",
			map[string]any{FieldMessageID: "1", FieldSentBy: "u1", FieldContent: "", FieldCreatedAt: at},
			map[string]any{FieldMessageID: "2", FieldSentBy: "u1", FieldContent: "ok", FieldCreatedAt: "yesterday"},
			MessageFields(message("u1", "kept", at)),
		},
	}

	room, skipped := DecodeRoom("u1_u2", fields)

	req.Equal(3, skipped)
	req.Len(room.Messages, 1)
	req.Equal("kept", room.Messages[0].Content)
	req.Nil(room.TypingUser)
}

func TestDecodeRoom_Missing_Document(t *testing.T) {
	req := require.New(t)

	room, skipped := DecodeRoom("u1_u2", nil)

	req.Zero(skipped)
	req.Empty(room.Messages)
	req.Nil(room.TypingUser)
}
