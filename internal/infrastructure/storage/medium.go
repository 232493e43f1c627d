package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// SchemaVersion is the version written with every snapshot.
// Version 0 is the bare JSON array format with numeric ids.
const SchemaVersion = 1

// Collection names
const (
	CollectionStores       = "stores"
	CollectionSessions     = "sessions"
	CollectionWebhooks     = "webhooks"
	CollectionProducts     = "products"
	CollectionImprovements = "improvements"
	CollectionAPITokens    = "apiTokens"
)

// Collections lists every collection the store manages
var Collections = []string{
	CollectionStores,
	CollectionSessions,
	CollectionWebhooks,
	CollectionProducts,
	CollectionImprovements,
	CollectionAPITokens,
}

// Snapshot is the full persisted contents of one collection
type Snapshot struct {
	SchemaVersion int               `json:"schemaVersion"`
	Records       []json.RawMessage `json:"records"`
}

// Medium persists whole-collection snapshots.
// Replace must be atomic: readers observe either the previous or the new snapshot.
type Medium interface {
	// Load returns nil when the collection has never been written
	Load(ctx context.Context, name string) (*Snapshot, error)
	Replace(ctx context.Context, name string, snapshot *Snapshot) error
	Close() error
}

func encodeSnapshot(snapshot *Snapshot) ([]byte, error) {
	records := snapshot.Records
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(Snapshot{SchemaVersion: snapshot.SchemaVersion, Records: records}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Snapshot{SchemaVersion: SchemaVersion}, nil
	}

	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to decode legacy snapshot: %w", err)
		}
		return &Snapshot{SchemaVersion: 0, Records: records}, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(trimmed, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}
