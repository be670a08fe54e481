package domain

import (
	"time"

	"github.com/samber/lo"
)

// Field names of the room document as stored.
const (
	FieldRoomID     = "roomId"
	FieldCreatedAt  = "createdAt"
	FieldTypingUser = "typingUser"
	FieldMessages   = "messages"

	FieldMessageID = "id"
	FieldSentBy    = "sentBy"
	FieldContent   = "content"
)

// RoomFields are the bookkeeping fields written by create-if-absent.
// They never touch messages nor typingUser, so repeating the write is harmless.
func RoomFields(id RoomID, createdAt time.Time) map[string]any {
	return map[string]any{
		FieldRoomID:    string(id),
		FieldCreatedAt: createdAt,
	}
}

func MessageFields(m Message) map[string]any {
	return map[string]any{
		FieldMessageID: m.ID,
		FieldSentBy:    string(m.SentBy),
		FieldContent:   m.Content,
		FieldCreatedAt: m.CreatedAt,
	}
}

// DecodeRoom reads a room document leniently: entries of the messages array that
// cannot be decoded are skipped and counted, the rest of the room stays usable.
func DecodeRoom(id RoomID, fields map[string]any) (Room, int) {
	room := Room{ID: id}
	if fields == nil {
		return room, 0
	}
	if at, ok := decodeTime(fields[FieldCreatedAt]); ok {
		room.CreatedAt = at
	}
	if typing, ok := fields[FieldTypingUser].(string); ok && typing != "" {
		room.TypingUser = lo.ToPtr(ParticipantID(typing))
	}
	raw, _ := fields[FieldMessages].([]any)
	room.Messages = lo.FilterMap(raw, func(item any, _ int) (Message, bool) {
		return decodeMessage(item)
	})
	return room, len(raw) - len(room.Messages)
}

func decodeMessage(item any) (Message, bool) {
	fields, ok := item.(map[string]any)
	if !ok {
		return Message{}, false
	}
	id, _ := fields[FieldMessageID].(string)
	sentBy, _ := fields[FieldSentBy].(string)
	content, _ := fields[FieldContent].(string)
	at, ok := decodeTime(fields[FieldCreatedAt])
	if !ok || id == "" || sentBy == "" || content == "" {
		return Message{}, false
	}
	return Message{
		ID:        id,
		SentBy:    ParticipantID(sentBy),
		Content:   content,
		CreatedAt: at,
	}, true
}

// decodeTime accepts native timestamps and RFC 3339 strings, the latter being
// what stores without a timestamp type give back.
func decodeTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	default:
		return time.Time{}, false
	}
}
