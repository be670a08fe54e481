package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func message(sender ParticipantID, content string, at time.Time) Message {
	return Message{ID: NewMessageID(sender, at), SentBy: sender, Content: content, CreatedAt: at}
}

func TestReduceSnapshot_Full_Replace_Converges(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	m1 := message("u1", "first", at)
	m2 := message("u2", "second", at.Add(time.Second))
	m3 := message("u1", "third", at.Add(2*time.Second))

	// Given snapshots arriving out of order
	sequence := ReduceSnapshot([]Message{m2, m1})
	req.Equal([]Message{m1, m2}, sequence)

	sequence = ReduceSnapshot([]Message{m1, m2, m3})

	// Then only the latest snapshot counts
	req.Equal([]Message{m1, m2, m3}, sequence)
}

func TestReduceSnapshot_Breaks_Ties_By_ID(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	fromBob := message("bob", "hi", at)
	fromAlice := message("alice", "hey", at)

	sequence := ReduceSnapshot([]Message{fromBob, fromAlice})

	req.Equal([]Message{fromAlice, fromBob}, sequence)
}

func TestReduceSnapshot_Collapses_Duplicate_Deliveries(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	m1 := message("u1", "hello", at)
	m2 := message("u2", "hello", at.Add(time.Millisecond))

	sequence := ReduceSnapshot([]Message{m1, m2, m1})

	// Same content from two senders is kept, same id is not
	req.Equal([]Message{m1, m2}, sequence)
}

func TestReduceSnapshot_Does_Not_Touch_Input(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	snapshot := []Message{message("u1", "b", at.Add(time.Second)), message("u1", "a", at)}

	_ = ReduceSnapshot(snapshot)

	req.Equal("b", snapshot[0].Content)
}

func TestReduceSnapshot_Empty(t *testing.T) {
	req := require.New(t)
	req.Empty(ReduceSnapshot(nil))
}
