package repositories

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const documentPrefix = "doc:"

// BadgerStore is a single-process realtime store on top of BadgerDB.
// Documents are protobuf Structs under "doc:{key}"; watchers of a key get a fresh
// snapshot after every committed write on it.
type BadgerStore struct {
	db       *badger.DB
	log      *slog.Logger
	registry contract.IRegistry
	maxTries uint

	// notifyMu orders deliveries: a snapshot read under it is never
	// delivered after a snapshot read later.
	notifyMu sync.Mutex
}

func NewBadgerStore(db *badger.DB, log *slog.Logger, registry contract.IRegistry) *BadgerStore {
	return &BadgerStore{db: db, log: log, registry: registry, maxTries: 10}
}

func documentKey(key string) []byte {
	return []byte(documentPrefix + key)
}

func (s *BadgerStore) GetDocument(ctx context.Context, key string) (contract.DocumentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return contract.DocumentSnapshot{}, err
	}
	snap, err := s.read(key)
	if err != nil {
		return contract.DocumentSnapshot{}, err
	}
	if !snap.Exists {
		return snap, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	return snap, nil
}

func (s *BadgerStore) SetDocument(ctx context.Context, key string, fields contract.Fields) error {
	return s.update(ctx, key, func(current contract.Fields, _ bool) (contract.Fields, error) {
		maps.Copy(current, fields)
		return current, nil
	})
}

func (s *BadgerStore) UpdateField(ctx context.Context, key, fieldPath string, value any) error {
	return s.update(ctx, key, func(current contract.Fields, exists bool) (contract.Fields, error) {
		if !exists {
			return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
		}
		current[fieldPath] = value
		return current, nil
	})
}

// AppendToArrayField has array-union semantics: a value already in the array is not added twice.
func (s *BadgerStore) AppendToArrayField(ctx context.Context, key, fieldPath string, value any) error {
	return s.update(ctx, key, func(current contract.Fields, _ bool) (contract.Fields, error) {
		items, _ := current[fieldPath].([]any)
		for _, item := range items {
			if sameValue(item, value) {
				return current, nil
			}
		}
		current[fieldPath] = append(items, value)
		return current, nil
	})
}

// Subscribe registers the listener then delivers the current state from another
// goroutine, so the caller never waits on a delivery.
func (s *BadgerStore) Subscribe(ctx context.Context, key string, listener contract.SnapshotListener) (contract.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subscriptionID := uuid.NewString()
	guard := newGuardedListener(listener)
	guard.onRelease(func() { s.registry.Unsubscribe(subscriptionID, key) })
	s.registry.Subscribe(subscriptionID, key, guard)
	context.AfterFunc(ctx, guard.Cancel)

	go func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		snap, err := s.read(key)
		if err != nil {
			guard.OnError(fmt.Errorf("%w: %w", errors.ErrSubscriptionLost, err))
			return
		}
		guard.OnSnapshot(snap)
	}()
	return guard, nil
}

// Documents lists every stored document, for inspection tools.
func (s *BadgerStore) Documents(ctx context.Context) ([]contract.DocumentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var snaps []contract.DocumentSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(documentPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), documentPrefix)
			err := item.Value(func(value []byte) error {
				fields, err := decodeFields(value)
				if err != nil {
					return err
				}
				snaps = append(snaps, contract.DocumentSnapshot{Key: key, Exists: true, Fields: fields})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return snaps, err
}

func (s *BadgerStore) read(key string) (contract.DocumentSnapshot, error) {
	snap := contract.DocumentSnapshot{Key: key}
	err := s.db.View(func(txn *badger.Txn) error {
		fields, exists, err := readFields(txn, key)
		snap.Fields, snap.Exists = fields, exists
		return err
	})
	if !snap.Exists {
		snap.Fields = nil
	}
	return snap, err
}

func readFields(txn *badger.Txn, key string) (contract.Fields, bool, error) {
	item, err := txn.Get(documentKey(key))
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return contract.Fields{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var fields contract.Fields
	err = item.Value(func(value []byte) error {
		fields, err = decodeFields(value)
		return err
	})
	return fields, err == nil, err
}

type mutation func(current contract.Fields, exists bool) (contract.Fields, error)

// update runs a read-modify-write transaction, retried on conflicts with a
// concurrent writer, then notifies the watchers of the key.
func (s *BadgerStore) update(ctx context.Context, key string, mutate mutation) error {
	operation := func() (struct{}, error) {
		err := s.db.Update(func(txn *badger.Txn) error {
			current, exists, err := readFields(txn, key)
			if err != nil {
				return err
			}
			next, err := mutate(current, exists)
			if err != nil {
				return err
			}
			bytes, err := encodeFields(next)
			if err != nil {
				return err
			}
			return txn.Set(documentKey(key), bytes)
		})
		if goerrors.Is(err, badger.ErrConflict) {
			s.log.Debug("Transaction conflict, retrying", "key", key)
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}
	if _, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries)); err != nil {
		return err
	}
	s.notify(key)
	return nil
}

func (s *BadgerStore) notify(key string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	listeners := s.registry.GetListenersForKey(key)
	if len(listeners) == 0 {
		return
	}
	snap, err := s.read(key)
	if err != nil {
		s.log.Error("Snapshot read failed", "key", key, "error", err)
		for _, listener := range listeners {
			listener.OnError(fmt.Errorf("%w: %w", errors.ErrSubscriptionLost, err))
		}
		return
	}
	for _, listener := range listeners {
		listener.OnSnapshot(snap)
	}
}
