package repositories

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore maps each key to a document of one collection.
// Timestamps come back as time.Time, arrays as []any and maps as map[string]any.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	log        *slog.Logger
}

func NewFirestoreStore(client *firestore.Client, collection string, log *slog.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection, log: log}
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

func (s *FirestoreStore) GetDocument(ctx context.Context, key string) (contract.DocumentSnapshot, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return contract.DocumentSnapshot{Key: key}, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return contract.DocumentSnapshot{}, fmt.Errorf("firestore: get %s: %w", key, err)
	}
	return toSnapshot(key, snap), nil
}

func (s *FirestoreStore) SetDocument(ctx context.Context, key string, fields contract.Fields) error {
	if _, err := s.doc(key).Set(ctx, map[string]any(fields), firestore.MergeAll); err != nil {
		return fmt.Errorf("firestore: set %s: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) UpdateField(ctx context.Context, key, fieldPath string, value any) error {
	_, err := s.doc(key).Update(ctx, []firestore.Update{{Path: fieldPath, Value: value}})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("firestore: update %s.%s: %w", key, fieldPath, err)
	}
	return nil
}

// AppendToArrayField relies on the server-side array union, which never loses a concurrent append.
func (s *FirestoreStore) AppendToArrayField(ctx context.Context, key, fieldPath string, value any) error {
	_, err := s.doc(key).Set(ctx, map[string]any{fieldPath: firestore.ArrayUnion(value)}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore: append %s.%s: %w", key, fieldPath, err)
	}
	return nil
}

// Subscribe follows the document with a snapshot listener on its own goroutine.
func (s *FirestoreStore) Subscribe(ctx context.Context, key string, listener contract.SnapshotListener) (contract.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	listenCtx, cancel := context.WithCancel(ctx)
	guard := newGuardedListener(listener)
	guard.onRelease(cancel)

	iter := s.doc(key).Snapshots(listenCtx)
	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if listenCtx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				s.log.Warn("Firestore listener failed", "key", key, "error", err)
				guard.OnError(fmt.Errorf("%w: %w", errors.ErrSubscriptionLost, err))
				return
			}
			guard.OnSnapshot(toSnapshot(key, snap))
		}
	}()
	return guard, nil
}

func toSnapshot(key string, snap *firestore.DocumentSnapshot) contract.DocumentSnapshot {
	if snap == nil || !snap.Exists() {
		return contract.DocumentSnapshot{Key: key}
	}
	return contract.DocumentSnapshot{Key: key, Exists: true, Fields: snap.Data()}
}
