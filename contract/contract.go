//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain/event"
	"context"
	"reflect"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives session events, one at a time, from the session's event loop.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Fields is the content of a document. Values are strings, booleans, numbers,
// time.Time, nil, []any and map[string]any.
type Fields = map[string]any

// DocumentSnapshot is the full state of one document at one point in time.
type DocumentSnapshot struct {
	Key    string
	Exists bool
	Fields Fields
}

// Store is the realtime document database the chat runs on.
type Store interface {
	// GetDocument returns errors.ErrNotFound when the key is absent.
	GetDocument(ctx context.Context, key string) (DocumentSnapshot, error)
	// SetDocument upserts the given top-level fields, other fields are kept.
	SetDocument(ctx context.Context, key string, fields Fields) error
	// UpdateField sets one field of an existing document.
	UpdateField(ctx context.Context, key, fieldPath string, value any) error
	// AppendToArrayField appends value to an array field, creating the document if needed.
	// Concurrent appends never overwrite each other.
	AppendToArrayField(ctx context.Context, key, fieldPath string, value any) error
	// Subscribe delivers a full snapshot of the document now and after every change,
	// until the subscription is canceled or ctx is done.
	Subscribe(ctx context.Context, key string, listener SnapshotListener) (Subscription, error)
}

type SnapshotListener interface {
	OnSnapshot(snap DocumentSnapshot)
	// OnError is terminal: no snapshot follows it on the same subscription.
	OnError(err error)
}

type Subscription interface {
	Cancel()
}

// IRegistry tracks which listeners watch which document.
type IRegistry interface {
	GetListenersForKey(key string) []SnapshotListener
	Subscribe(subscriptionID, key string, listener SnapshotListener)
	Unsubscribe(subscriptionID, key string)
}
