// Package cache implements the archive cache: a content-addressed,
// append-only directory keyed by an archive's origin descriptor (not its
// content), so a fetch can be resumed after a crash without re-contacting
// the server once a prior run has completed successfully.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Cache is a directory of completed archive downloads, keyed by an origin
// descriptor string built by the caller (the cache key invariant from the
// data model: HTTP keys fold in the final filename, GitHub keys fold in
// user/repo/coordinate).
type Cache struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens (creating if necessary) a content-addressed cache rooted at dir.
func New(dir string) (*Cache, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", objDir, err)
	}
	return &Cache{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Lookup returns the path of a complete cached entry for key, if present.
func (c *Cache) Lookup(key string) (string, bool) {
	path := c.objectPath(key)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Reservation is an exclusive writer handle for a cache key. Write streams
// the fetched archive into a `.partial` sibling of the final object path;
// Commit atomically renames it into place; Abort removes it. Exactly one
// of Commit or Abort must be called.
type Reservation struct {
	cache     *Cache
	key       string
	finalPath string
	file      *os.File
	release   func()
}

// Reserve blocks until any other in-flight reservation for key completes,
// then returns a fresh writer for it. If the key is already cached, Reserve
// still returns a usable (if redundant) reservation — callers are expected
// to check Lookup first per the fetcher idempotency invariant.
func (c *Cache) Reserve(key string) (*Reservation, error) {
	keyMu := c.lockFor(key)
	keyMu.Lock()

	final := c.objectPath(key)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		keyMu.Unlock()
		return nil, fmt.Errorf("creating cache subdirectory: %w", err)
	}

	partial := final + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		keyMu.Unlock()
		return nil, fmt.Errorf("creating partial cache file: %w", err)
	}

	return &Reservation{
		cache:     c,
		key:       key,
		finalPath: final,
		file:      f,
		release:   keyMu.Unlock,
	}, nil
}

// Write implements io.Writer, streaming into the partial file.
func (r *Reservation) Write(p []byte) (int, error) {
	return r.file.Write(p)
}

// Path is the eventual final path, valid for use once Commit returns.
func (r *Reservation) Path() string {
	return r.finalPath
}

// Commit fsyncs and atomically renames the partial file into place.
func (r *Reservation) Commit() error {
	defer r.release()
	if err := r.file.Sync(); err != nil {
		_ = r.file.Close()
		_ = os.Remove(r.file.Name())
		return fmt.Errorf("syncing cache entry: %w", err)
	}
	if err := r.file.Close(); err != nil {
		_ = os.Remove(r.file.Name())
		return fmt.Errorf("closing cache entry: %w", err)
	}
	if err := os.Rename(r.file.Name(), r.finalPath); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

// Abort discards the partial file, per the failure branch of reserve: "on
// failure, the partial file is removed."
func (r *Reservation) Abort() {
	defer r.release()
	_ = r.file.Close()
	_ = os.Remove(r.file.Name())
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	return m
}

// Path returns the cache's root directory.
func (c *Cache) Path() string {
	return c.dir
}

func (c *Cache) objectPath(key string) string {
	hash := hashKey(key)
	return filepath.Join(c.dir, "objects", hash[:2], hash)
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// ComputeHashFallback derives a stable synthetic filename from an arbitrary
// string (typically a URL with no usable final path segment).
func ComputeHashFallback(s string) string {
	return hashKey(s)[:16]
}

// CopyInto streams src (e.g. an HTTP response body) into a reservation and
// commits it on success, aborting on any read or write error.
func CopyInto(r *Reservation, src io.Reader) error {
	if _, err := io.Copy(r, src); err != nil {
		r.Abort()
		return err
	}
	return r.Commit()
}
