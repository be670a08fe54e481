package domain

import (
	"time"
)

// RoomSeparator joins the two sorted participant ids of a RoomID.
const RoomSeparator = "_"

// RoomID is the canonical, order-independent key of a two-party conversation.
type RoomID string

// NewRoomID derives the room key of a pair.
// NewRoomID(a, b) == NewRoomID(b, a) for every valid pair.
func NewRoomID(a, b ParticipantID) (RoomID, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	if err := b.Validate(); err != nil {
		return "", err
	}
	if b < a {
		a, b = b, a
	}
	return RoomID(string(a) + RoomSeparator + string(b)), nil
}

func (r RoomID) String() string {
	return string(r)
}

// Room is the decoded room document.
// TypingUser holds at most one participant, the last one who wrote it.
type Room struct {
	ID         RoomID
	CreatedAt  time.Time
	TypingUser *ParticipantID
	Messages   []Message
}

// IsTyping reports whether the typing slot is held by the given participant.
func (r Room) IsTyping(p ParticipantID) bool {
	return r.TypingUser != nil && *r.TypingUser == p
}
