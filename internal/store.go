package internal

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"github.com/dgraph-io/badger/v4"
	"google.golang.org/api/option"
)

const (
	BackendBadger    = "badger"
	BackendFirestore = "firestore"
)

// Store is the backend selected by STORE_BACKEND.
// Badger is only set for the embedded backend, which inspection tools read directly.
type Store struct {
	contract.Store
	Badger *repositories.BadgerStore
	close  func() error
}

func (s *Store) Close() error {
	return s.close()
}

func OpenStore(ctx context.Context, log *slog.Logger, config Config) (*Store, error) {
	switch config.StoreBackend {
	case BackendBadger:
		return openBadger(log, config)
	case BackendFirestore:
		return openFirestore(ctx, log, config)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, config.StoreBackend)
	}
}

func openBadger(log *slog.Logger, config Config) (*Store, error) {
	if config.BadgerFilepath == "" {
		return nil, fmt.Errorf("BADGER_FILEPATH is required for the %s backend", BackendBadger)
	}
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	store := repositories.NewBadgerStore(db, log, runtime.NewRegistry())
	return &Store{
		Store:  store,
		Badger: store,
		close: func() error {
			log.Info("Closing BadgerDB...")
			return db.Close()
		},
	}, nil
}

func openFirestore(ctx context.Context, log *slog.Logger, config Config) (*Store, error) {
	if config.FirestoreProject == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT is required for the %s backend", BackendFirestore)
	}
	var opts []option.ClientOption
	if config.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.GoogleCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: config.FirestoreProject}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{
		Store: repositories.NewFirestoreStore(client, config.FirestoreCollection, log),
		close: func() error {
			log.Info("Closing Firestore client...")
			return client.Close()
		},
	}, nil
}
