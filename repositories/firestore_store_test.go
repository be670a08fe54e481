package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newFirestoreStore talks to the Firestore emulator, the tests are skipped without it.
func newFirestoreStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "chat-sync-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewFirestoreStore(client, fmt.Sprintf("rooms-%s", uuid.NewString()), slog.Default())
}

func TestFirestoreStore_Round_Trip(t *testing.T) {
	req := require.New(t)
	store := newFirestoreStore(t)
	ctx := context.Background()

	_, err := store.GetDocument(ctx, "u1_u2")
	req.ErrorIs(err, errors.ErrNotFound)
	req.ErrorIs(store.UpdateField(ctx, "u1_u2", domain.FieldTypingUser, "u1"), errors.ErrNotFound)

	msg, err := domain.NewMessage("u1", "hello", domain.NewMonotonicClock())
	req.NoError(err)
	req.NoError(store.SetDocument(ctx, "u1_u2", domain.RoomFields("u1_u2", time.Now())))
	req.NoError(store.AppendToArrayField(ctx, "u1_u2", domain.FieldMessages, domain.MessageFields(msg)))
	req.NoError(store.UpdateField(ctx, "u1_u2", domain.FieldTypingUser, "u2"))

	snap, err := store.GetDocument(ctx, "u1_u2")
	req.NoError(err)
	room, skipped := domain.DecodeRoom("u1_u2", snap.Fields)
	req.Zero(skipped)
	req.True(room.IsTyping("u2"))
	req.Len(room.Messages, 1)
	req.Equal(msg.ID, room.Messages[0].ID)
}

func TestFirestoreStore_Subscribe(t *testing.T) {
	req := require.New(t)
	store := newFirestoreStore(t)
	ctx := context.Background()
	listener := newSnapshots()

	subscription, err := store.Subscribe(ctx, "u1_u2", listener)
	req.NoError(err)
	req.False(listener.next(t).Exists)

	req.NoError(store.SetDocument(ctx, "u1_u2", domain.RoomFields("u1_u2", time.Now())))
	req.True(listener.next(t).Exists)

	subscription.Cancel()
	req.NoError(store.UpdateField(ctx, "u1_u2", domain.FieldTypingUser, "u1"))
	listener.none(t)
}
