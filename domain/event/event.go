package event

import (
	"chat-sync/domain"
)

// DomainEvent is what a session tells its observers after each reduction.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagesReplaced carries the whole ordered sequence, never a delta.
type MessagesReplaced struct {
	Room     domain.RoomID
	Messages []domain.Message
}

func (e MessagesReplaced) RoomID() domain.RoomID {
	return e.Room
}

// RemoteTypingChanged is emitted when the other participant starts or stops typing.
type RemoteTypingChanged struct {
	Room   domain.RoomID
	Typing bool
}

func (e RemoteTypingChanged) RoomID() domain.RoomID {
	return e.Room
}

// ConnectionChanged is emitted when the live subscription drops and when it is back.
// The last known messages stay in place while disconnected.
type ConnectionChanged struct {
	Room      domain.RoomID
	Connected bool
}

func (e ConnectionChanged) RoomID() domain.RoomID {
	return e.Room
}
