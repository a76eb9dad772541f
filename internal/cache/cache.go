// Package cache keeps the raw batches fetched from a study on disk so that
// repeated runs with other thresholds skip the slow result queries.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chrissnell/thermexposure/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the encoded layout changes
const formatVersion = 2

// ErrMiss means the cache file is absent or does not match the request
var ErrMiss = errors.New("cache miss")

type envelope struct {
	Version   int              `msgpack:"version"`
	Study     string           `msgpack:"study"`
	Field     string           `msgpack:"field"`
	Revision  string           `msgpack:"revision"`
	CreatedAt time.Time        `msgpack:"created_at"`
	Batches   []types.RawBatch `msgpack:"batches"`
}

// Key identifies what a cache file holds. Revision is the study's result
// revision at fetch time, so rewritten results invalidate the cache.
type Key struct {
	Study    string
	Field    string
	Revision string
}

// Save writes batches to path atomically
func Save(path string, key Key, batches []types.RawBatch) error {
	data, err := msgpack.Marshal(&envelope{
		Version:   formatVersion,
		Study:     key.Study,
		Field:     key.Field,
		Revision:  key.Revision,
		CreatedAt: time.Now().UTC(),
		Batches:   batches,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}

// Load reads batches previously saved under key. It returns ErrMiss when the
// file does not exist or was written for another key or format.
func Load(path string, key Key) ([]types.RawBatch, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cache file %s: %w", path, err)
	}
	if env.Version != formatVersion || env.Study != key.Study || env.Field != key.Field || env.Revision != key.Revision {
		return nil, ErrMiss
	}
	return env.Batches, nil
}
