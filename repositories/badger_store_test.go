package repositories

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/runtime"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db, slog.Default(), runtime.NewRegistry())
}

// snapshots collects what a subscription delivers.
type snapshots struct {
	ch   chan contract.DocumentSnapshot
	errs chan error
}

func newSnapshots() *snapshots {
	return &snapshots{ch: make(chan contract.DocumentSnapshot, 64), errs: make(chan error, 1)}
}

func (s *snapshots) OnSnapshot(snap contract.DocumentSnapshot) { s.ch <- snap }
func (s *snapshots) OnError(err error)                         { s.errs <- err }

func (s *snapshots) next(t *testing.T) contract.DocumentSnapshot {
	t.Helper()
	select {
	case snap := <-s.ch:
		return snap
	case <-time.After(3 * time.Second):
		require.Fail(t, "no snapshot delivered")
		return contract.DocumentSnapshot{}
	}
}

func (s *snapshots) none(t *testing.T) {
	t.Helper()
	select {
	case snap := <-s.ch:
		require.Failf(t, "unexpected snapshot", "%+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBadgerStore_Get_Missing_Document(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)

	_, err := store.GetDocument(context.Background(), "u1_u2")

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestBadgerStore_Set_Merges_Top_Level_Fields(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx := context.Background()
	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)

	// Given a room with a typing user
	req.NoError(store.SetDocument(ctx, "u1_u2", domain.RoomFields("u1_u2", createdAt)))
	req.NoError(store.UpdateField(ctx, "u1_u2", domain.FieldTypingUser, "u2"))

	// When the room is created again
	req.NoError(store.SetDocument(ctx, "u1_u2", domain.RoomFields("u1_u2", createdAt.Add(time.Hour))))

	// Then the typing user is kept and the time is readable by the room decoder
	snap, err := store.GetDocument(ctx, "u1_u2")
	req.NoError(err)
	req.True(snap.Exists)
	room, skipped := domain.DecodeRoom("u1_u2", snap.Fields)
	req.Zero(skipped)
	req.True(room.IsTyping("u2"))
	req.Equal(createdAt.Add(time.Hour), room.CreatedAt)
}

func TestBadgerStore_Update_Missing_Document(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)

	err := store.UpdateField(context.Background(), "u1_u2", domain.FieldTypingUser, "u1")

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestBadgerStore_Append_Creates_And_Keeps_Every_Message(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx := context.Background()
	clock := domain.NewMonotonicClock()

	// When both participants append concurrently to a missing room
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := range 10 {
		sender := domain.ParticipantID(fmt.Sprintf("u%d", i%2+1))
		msg, err := domain.NewMessage(sender, fmt.Sprintf("message %d", i), clock)
		req.NoError(err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.AppendToArrayField(ctx, "u1_u2", domain.FieldMessages, domain.MessageFields(msg))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then no append overwrote another one
	snap, err := store.GetDocument(ctx, "u1_u2")
	req.NoError(err)
	room, skipped := domain.DecodeRoom("u1_u2", snap.Fields)
	req.Zero(skipped)
	req.Len(room.Messages, 10)
}

func TestBadgerStore_Append_Is_A_Union(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx := context.Background()
	msg, err := domain.NewMessage("u1", "hello", domain.NewMonotonicClock())
	req.NoError(err)

	req.NoError(store.AppendToArrayField(ctx, "u1_u2", domain.FieldMessages, domain.MessageFields(msg)))
	req.NoError(store.AppendToArrayField(ctx, "u1_u2", domain.FieldMessages, domain.MessageFields(msg)))

	snap, err := store.GetDocument(ctx, "u1_u2")
	req.NoError(err)
	room, _ := domain.DecodeRoom("u1_u2", snap.Fields)
	req.Equal([]domain.Message{msg}, room.Messages)
}

func TestBadgerStore_Subscribe_Delivers_Initial_Then_Changes(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx := context.Background()
	listener := newSnapshots()

	// Given a subscription on a missing document
	subscription, err := store.Subscribe(ctx, "u1_u2", listener)
	req.NoError(err)
	initial := listener.next(t)
	req.False(initial.Exists)

	// When the document is written
	req.NoError(store.SetDocument(ctx, "u1_u2", domain.RoomFields("u1_u2", time.Now())))

	// Then the full document is delivered
	snap := listener.next(t)
	req.True(snap.Exists)
	req.Equal("u1_u2", snap.Fields[domain.FieldRoomID])

	// When the subscription is canceled
	subscription.Cancel()
	req.NoError(store.UpdateField(ctx, "u1_u2", domain.FieldTypingUser, "u1"))

	// Then nothing more is delivered
	listener.none(t)
}

func TestBadgerStore_Subscribe_Ends_With_Context(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	listener := newSnapshots()

	_, err := store.Subscribe(ctx, "u1_u2", listener)
	req.NoError(err)
	listener.next(t)

	cancel()
	req.Eventually(func() bool {
		return len(store.registry.GetListenersForKey("u1_u2")) == 0
	}, time.Second, 10*time.Millisecond)

	req.NoError(store.SetDocument(context.Background(), "u1_u2", domain.RoomFields("u1_u2", time.Now())))
	listener.none(t)
}

func TestBadgerStore_Subscribe_Canceled_Context(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Subscribe(ctx, "u1_u2", newSnapshots())

	req.ErrorIs(err, context.Canceled)
}

func TestBadgerStore_Notifies_Through_Registry(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	registry := mocks.NewMockIRegistry(ctrl)
	listener := mocks.NewMockSnapshotListener(ctrl)
	store := NewBadgerStore(db, slog.Default(), registry)

	// Given one listener watching the room
	registry.EXPECT().GetListenersForKey("u1_u2").Return([]contract.SnapshotListener{listener})
	// Then it receives the written document
	listener.EXPECT().OnSnapshot(gomock.Any()).Do(func(snap contract.DocumentSnapshot) {
		req.Equal("u1_u2", snap.Key)
		req.Equal("u1", snap.Fields[domain.FieldTypingUser])
	})

	req.NoError(store.SetDocument(context.Background(), "u1_u2", contract.Fields{domain.FieldTypingUser: "u1"}))
}

func TestBadgerStore_Documents(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	ctx := context.Background()
	req.NoError(store.SetDocument(ctx, "a_b", domain.RoomFields("a_b", time.Now())))
	req.NoError(store.SetDocument(ctx, "c_d", domain.RoomFields("c_d", time.Now())))

	docs, err := store.Documents(ctx)

	req.NoError(err)
	req.Len(docs, 2)
	req.Equal("a_b", docs[0].Key)
	req.Equal("c_d", docs[1].Key)
}
