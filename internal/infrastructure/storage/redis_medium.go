package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const collectionPrefix = "collection"

type cmdable interface {
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
}

// RedisMedium stores each collection snapshot under one key; SET replaces it atomically
type RedisMedium struct {
	store  cmdable
	raw    *redis.Client
	prefix string
}

var _ Medium = (*RedisMedium)(nil)

// NewRedisMedium connects to url and verifies connectivity
func NewRedisMedium(ctx context.Context, url, prefix string) (*RedisMedium, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisMedium{store: raw, raw: raw, prefix: prefix}, nil
}

// CollectionKey returns the namespaced key of a collection
func (m *RedisMedium) CollectionKey(name string) string {
	parts := []string{collectionPrefix, name}
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return strings.Join(parts, ":")
}

func (m *RedisMedium) Load(ctx context.Context, name string) (*Snapshot, error) {
	data, err := m.store.Get(ctx, m.CollectionKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return decodeSnapshot(data)
}

func (m *RedisMedium) Replace(ctx context.Context, name string, snapshot *Snapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.CollectionKey(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

func (m *RedisMedium) Close() error {
	if m.raw == nil {
		return nil
	}
	return m.raw.Close()
}
