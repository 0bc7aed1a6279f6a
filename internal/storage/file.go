package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jfenske/recollect/internal/card"
)

// File is a PersistenceGateway backed by a single JSON file. Saves are
// atomic: the snapshot is written to a temp file and renamed over the
// target, so a crash mid-write never corrupts the previous snapshot.
type File struct {
	path string
}

// NewFile creates a gateway writing to the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the snapshot file. It returns (nil, nil) when the file
// does not exist yet.
func (f *File) Load(_ context.Context) (*card.StorageBlob, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}

	var blob card.StorageBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	if blob.Cards == nil {
		blob.Cards = make(map[string]*card.Card)
	}
	return &blob, nil
}

// Save writes the snapshot atomically.
func (f *File) Save(_ context.Context, blob *card.StorageBlob) error {
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".recollect-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", f.path, err)
	}
	return nil
}
