package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopify-improvement-core/internal/domain"
)

// Timestamped records keep their creation time across upserts
type Timestamped interface {
	GetCreatedAt() time.Time
	SetCreatedAt(t time.Time)
}

// Collection is a typed view over one named collection.
// Records are identified by the key function.
type Collection[T any] struct {
	db   *DB
	name string
	key  func(*T) string
}

// NewCollection binds a record type to a collection name
func NewCollection[T any](db *DB, name string, key func(*T) string) *Collection[T] {
	return &Collection[T]{db: db, name: name, key: key}
}

// Name returns the collection name
func (c *Collection[T]) Name() string {
	return c.name
}

// ReadAll returns a copy of every record. A never-written collection is empty.
func (c *Collection[T]) ReadAll(ctx context.Context) ([]T, error) {
	snapshot, err := c.db.load(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return c.decode(snapshot)
}

// WriteAll atomically replaces the contents of the collection
func (c *Collection[T]) WriteAll(ctx context.Context, records []T) error {
	l := c.db.lock(c.name)
	l.Lock()
	defer l.Unlock()
	return c.write(ctx, records)
}

// Find returns the first record matching predicate, or nil
func (c *Collection[T]) Find(ctx context.Context, predicate func(*T) bool) (*T, error) {
	records, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if predicate(&records[i]) {
			return &records[i], nil
		}
	}
	return nil, nil
}

// Filter returns every record matching predicate
func (c *Collection[T]) Filter(ctx context.Context, predicate func(*T) bool) ([]T, error) {
	records, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]T, 0, len(records))
	for i := range records {
		if predicate(&records[i]) {
			matched = append(matched, records[i])
		}
	}
	return matched, nil
}

// Append adds a record to the end of the collection
func (c *Collection[T]) Append(ctx context.Context, record T) error {
	return c.Mutate(ctx, func(records []T) ([]T, error) {
		return append(records, record), nil
	})
}

// Upsert replaces the record with the same key or appends it.
// When a match exists the original creation time is kept.
func (c *Collection[T]) Upsert(ctx context.Context, record T) (T, error) {
	key := c.key(&record)
	err := c.Mutate(ctx, func(records []T) ([]T, error) {
		for i := range records {
			if c.key(&records[i]) != key {
				continue
			}
			if incoming, ok := any(&record).(Timestamped); ok {
				if existing, ok := any(&records[i]).(Timestamped); ok && !existing.GetCreatedAt().IsZero() {
					incoming.SetCreatedAt(existing.GetCreatedAt())
				}
			}
			records[i] = record
			return records, nil
		}
		return append(records, record), nil
	})
	return record, err
}

// Update applies mutate to the first record matching predicate and persists it.
// Returns nil without writing when nothing matches.
func (c *Collection[T]) Update(ctx context.Context, predicate func(*T) bool, mutate func(*T) error) (*T, error) {
	var updated *T
	err := c.Mutate(ctx, func(records []T) ([]T, error) {
		for i := range records {
			if !predicate(&records[i]) {
				continue
			}
			if err := mutate(&records[i]); err != nil {
				return nil, err
			}
			result := records[i]
			updated = &result
			return records, nil
		}
		return nil, errNoChange
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove deletes every record matching predicate and returns how many were removed
func (c *Collection[T]) Remove(ctx context.Context, predicate func(*T) bool) (int, error) {
	removed := 0
	err := c.Mutate(ctx, func(records []T) ([]T, error) {
		kept := records[:0]
		for i := range records {
			if predicate(&records[i]) {
				removed++
				continue
			}
			kept = append(kept, records[i])
		}
		if removed == 0 {
			return nil, errNoChange
		}
		return kept, nil
	})
	return removed, err
}

// Mutate runs a read-modify-write cycle under the collection lock.
// fn may return errNoChange to skip the write.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	l := c.db.lock(c.name)
	l.Lock()
	defer l.Unlock()

	records, err := c.ReadAll(ctx)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err == errNoChange {
		return nil
	}
	if err != nil {
		return err
	}
	return c.write(ctx, next)
}

func (c *Collection[T]) write(ctx context.Context, records []T) error {
	raw := make([]json.RawMessage, 0, len(records))
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("failed to encode %s record: %w", c.name, err)
		}
		raw = append(raw, data)
	}
	return c.db.replace(ctx, c.name, &Snapshot{SchemaVersion: SchemaVersion, Records: raw})
}

func (c *Collection[T]) decode(snapshot *Snapshot) ([]T, error) {
	if snapshot == nil {
		return []T{}, nil
	}
	if snapshot.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: %s has schema version %d, newer than %d",
			domain.ErrStorageUnavailable, c.name, snapshot.SchemaVersion, SchemaVersion)
	}
	records := make([]T, 0, len(snapshot.Records))
	for i, raw := range snapshot.Records {
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("%w: decode %s record %d: %v", domain.ErrStorageUnavailable, c.name, i, err)
		}
		records = append(records, record)
	}
	return records, nil
}
