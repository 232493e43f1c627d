package storage

import (
	"context"
	"fmt"
	"sync"

	"shopify-improvement-core/internal/domain"

	"github.com/rs/zerolog"
)

// WriteObserver is notified after every collection write attempt
type WriteObserver interface {
	ObserveCollectionWrite(collection string, err error)
}

// DB owns a Medium and serializes writers per collection.
// Every read-modify-write cycle on a collection holds that collection's mutex.
type DB struct {
	medium   Medium
	logger   zerolog.Logger
	observer WriteObserver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDB creates a collection store on top of medium
func NewDB(medium Medium, logger zerolog.Logger) *DB {
	return &DB{
		medium: medium,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// WithObserver registers a write observer, typically metrics
func (db *DB) WithObserver(observer WriteObserver) *DB {
	db.observer = observer
	return db
}

// Close releases the underlying medium
func (db *DB) Close() error {
	return db.medium.Close()
}

func (db *DB) lock(name string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.locks[name]
	if !ok {
		l = &sync.Mutex{}
		db.locks[name] = l
	}
	return l
}

func (db *DB) load(ctx context.Context, name string) (*Snapshot, error) {
	snapshot, err := db.medium.Load(ctx, name)
	if err != nil {
		db.logger.Error().Err(err).Str("collection", name).Msg("Failed to read collection")
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	return snapshot, nil
}

func (db *DB) replace(ctx context.Context, name string, snapshot *Snapshot) error {
	err := db.medium.Replace(ctx, name, snapshot)
	if db.observer != nil {
		db.observer.ObserveCollectionWrite(name, err)
	}
	if err != nil {
		db.logger.Error().Err(err).Str("collection", name).Msg("Failed to write collection")
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	return nil
}
