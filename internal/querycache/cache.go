// Package querycache stores registry read results on disk so repeated
// lookups do not hit the network. Publishing invalidates the whole store.
package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	gocache "github.com/patrickmn/go-cache"
)

const (
	memoryTTL     = 5 * time.Minute
	sweepInterval = 10 * time.Minute
)

// DefaultDir returns the default on-disk location of the query cache.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "parcel", "queries")
}

// Store is a read-through cache of registry query results, keyed by query
// string. Entries live in memory for a short TTL and on disk until the
// store is invalidated.
type Store struct {
	dir    string
	memory *gocache.Cache
}

// New creates a store rooted at dir. An empty dir uses DefaultDir.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{
		dir:    dir,
		memory: gocache.New(memoryTTL, sweepInterval),
	}
}

// Dir returns the on-disk root of the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) entryPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Get loads the cached value for key into target.
func (s *Store) Get(key string, target any) bool {
	if raw, ok := s.memory.Get(key); ok {
		if err := json.Unmarshal(raw.([]byte), target); err == nil {
			return true
		}
	}

	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false
	}

	s.memory.Set(key, data, gocache.DefaultExpiration)
	return true
}

// Set stores value under key, in memory and on disk.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(s.entryPath(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	s.memory.Set(key, data, gocache.DefaultExpiration)
	return nil
}

// Invalidate drops every entry, in memory and on disk.
func (s *Store) Invalidate() error {
	s.memory.Flush()
	return Invalidate(s.dir)
}

// Invalidate removes the on-disk query cache rooted at dir. A missing
// directory is not an error.
func Invalidate(dir string) error {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove query cache %s: %w", dir, err)
	}
	return nil
}
