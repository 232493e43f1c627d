package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// fileNames keeps the on-disk names used by existing deployments
var fileNames = map[string]string{
	CollectionStores:       "stores.json",
	CollectionSessions:     "sessions.json",
	CollectionWebhooks:     "webhooks.json",
	CollectionProducts:     "products.json",
	CollectionImprovements: "improvements.json",
	CollectionAPITokens:    "api-tokens.json",
}

// FileMedium stores one JSON file per collection in a directory.
// Writes go to a temporary file that is synced and renamed over the target.
type FileMedium struct {
	dir string
}

var _ Medium = (*FileMedium)(nil)

// NewFileMedium creates dir if needed
func NewFileMedium(dir string) (*FileMedium, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileMedium{dir: dir}, nil
}

func (m *FileMedium) path(name string) string {
	file, ok := fileNames[name]
	if !ok {
		file = name + ".json"
	}
	return filepath.Join(m.dir, file)
}

func (m *FileMedium) Load(ctx context.Context, name string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return decodeSnapshot(data)
}

func (m *FileMedium) Replace(ctx context.Context, name string, snapshot *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	target := m.path(name)
	tmp, err := os.CreateTemp(m.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	committed = true
	return nil
}

func (m *FileMedium) Close() error {
	return nil
}
