// Package cache implements the disk-backed transform cache: a version-gated
// mapping from a file identity key to its last compiled result.
//
// The in-memory map is the source of truth during a session; disk writes
// happen behind the hot path and may lose races or fail silently, which at
// worst costs a recompile in a future session. The on-disk cache is valid
// only as a whole: its metadata version combines the cache format version
// with the transformer's version, and any mismatch discards every entry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/types"
)

// formatVersion gates the on-disk layout. Bump on any change to the entry
// or metadata encoding.
const formatVersion = 1

// metadataFile holds the composite version the cache directory was built
// under.
const metadataFile = "_metadata.json"

// Entry is one compiled file's last known state. Input is the verbatim
// source text last compiled; Code and Map are the corresponding output.
type Entry struct {
	Input string           `json:"input"`
	Code  string           `json:"code"`
	Map   *types.SourceMap `json:"map"`
}

type metadata struct {
	Version string `json:"version"`
}

// Stats is a snapshot of cache activity for diagnostics.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Stores  int64 `json:"stores"`
}

// CompositeVersion combines the cache format version with the transformer's
// own version so a change to either invalidates prior caches.
func CompositeVersion(transformerVersion string) string {
	return fmt.Sprintf("refract-v%d-%s", formatVersion, transformerVersion)
}

// Store owns the persisted compiled results for one session.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	dir     string
	version string
	logger  logging.Logger

	hits   int64
	misses int64
	stores int64

	// pending tracks in-flight background writes so tests and shutdown
	// paths can wait for them; the compile path never does.
	pending sync.WaitGroup
}

// NewStore creates an empty, uninitialized cache store.
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	return &Store{
		entries: make(map[string]Entry),
		logger:  logger.WithComponent("cache"),
	}
}

// Initialize prepares the cache directory and restores prior entries when
// the on-disk cache was written under the current composite version. A
// version mismatch wipes the directory; a missing directory is created. In
// every case fresh metadata is written for the next session.
//
// Restoration reads all entry files concurrently and does not return until
// every read has settled. A single unreadable entry makes the whole cache
// suspect: everything is discarded and the session starts empty, so one
// corrupt file costs recompiles, never a working tool. Only filesystem
// failures surface as errors.
func (s *Store) Initialize(ctx context.Context, projectRoot, cacheDir, transformerVersion string) error {
	dir := cacheDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	version := CompositeVersion(transformerVersion)

	s.mu.Lock()
	s.dir = dir
	s.version = version
	s.mu.Unlock()

	meta, err := readMetadata(filepath.Join(dir, metadataFile))
	switch {
	case err == nil && meta.Version == version:
		if rerr := s.restore(ctx, dir); rerr != nil {
			s.logger.Warn(ctx, rerr, "Discarding unreadable cache", "dir", dir)
			s.mu.Lock()
			s.entries = make(map[string]Entry)
			s.mu.Unlock()
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("discarding unreadable cache %s: %w", dir, err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("recreating cache directory %s: %w", dir, err)
			}
		}
	case err == nil || !os.IsNotExist(err):
		// Stale cache from another format or transformer version, or
		// metadata of unknown provenance.
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("discarding stale cache %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("recreating cache directory %s: %w", dir, err)
		}
	default:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	return writeMetadata(filepath.Join(dir, metadataFile), metadata{Version: version})
}

// restore loads every entry file in the cache directory into memory,
// concurrently and order-independently.
func (s *Store) restore(ctx context.Context, dir string) error {
	start := time.Now()

	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	for _, file := range files {
		if file.IsDir() || file.Name() == metadataFile || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		name := file.Name()
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("reading cache entry %s: %w", name, err)
			}
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("decoding cache entry %s: %w", name, err)
			}
			key := strings.TrimSuffix(name, ".json")
			s.mu.Lock()
			s.entries[key] = entry
			s.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.RLock()
	restored := len(s.entries)
	s.mu.RUnlock()
	s.logger.Info(ctx, "Cache restored",
		"entries", restored,
		"duration", time.Since(start).String(),
	)
	return nil
}

// Lookup returns the entry for key when its recorded input matches input
// byte for byte. It never touches disk. A present entry whose input differs
// is a miss like any other: the file changed since it was compiled.
func (s *Store) Lookup(key, input string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if ok && entry.Input == input {
		atomic.AddInt64(&s.hits, 1)
		return entry, true
	}
	atomic.AddInt64(&s.misses, 1)
	return Entry{}, false
}

// Store records entry under key in memory, then persists it to disk in the
// background. Persistence is fire-and-forget: a failed write is logged at
// debug level and dropped, costing at most a future cache miss. Concurrent
// writes to the same key are not deduplicated; the last disk write wins.
func (s *Store) Store(key string, entry Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	dir := s.dir
	s.mu.Unlock()

	atomic.AddInt64(&s.stores, 1)

	if dir == "" {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.persist(dir, key, entry)
	}()
}

func (s *Store) persist(dir, key string, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Debug(context.Background(), "Dropped cache write", "key", key, "error", err.Error())
		return
	}
	if err := os.WriteFile(filepath.Join(dir, key+".json"), data, 0o644); err != nil {
		s.logger.Debug(context.Background(), "Dropped cache write", "key", key, "error", err.Error())
	}
}

// Flush waits for all in-flight background writes. Only tests and shutdown
// paths call this; the compile path never blocks on disk.
func (s *Store) Flush() {
	s.pending.Wait()
}

// Clear wipes the in-memory mapping and the on-disk cache, then rewrites
// metadata so the directory stays valid for the current session.
func (s *Store) Clear() error {
	s.pending.Wait()

	s.mu.Lock()
	s.entries = make(map[string]Entry)
	dir := s.dir
	version := s.version
	s.mu.Unlock()

	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing cache directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recreating cache directory %s: %w", dir, err)
	}
	return writeMetadata(filepath.Join(dir, metadataFile), metadata{Version: version})
}

// GetStats returns a snapshot of cache activity.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	entries := len(s.entries)
	s.mu.RUnlock()

	return Stats{
		Entries: entries,
		Hits:    atomic.LoadInt64(&s.hits),
		Misses:  atomic.LoadInt64(&s.misses),
		Stores:  atomic.LoadInt64(&s.stores),
	}
}

func readMetadata(path string) (metadata, error) {
	var meta metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func writeMetadata(path string, meta metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}
	return nil
}
