// Package plane maintains a local cache of Plane.so issue data so that
// queries, link bookkeeping, and status comparisons do not require a
// round trip to the tracker. Sync ingests data an MCP client already
// fetched; nothing in this package talks to the Plane API directly.
package plane

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claudekit/claudekit/internal/fslock"
)

// DefaultCacheFile is the cache location relative to the project root.
const DefaultCacheFile = ".claude/plane-sync.json"

// Project identifies the Plane project the cache mirrors.
type Project struct {
	ID         string `json:"id,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Name       string `json:"name,omitempty"`
	Workspace  string `json:"workspace,omitempty"`
}

// Issue is one cached Plane issue, keyed in the cache by "IDENT-seq".
type Issue struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state,omitempty"`
	StateID   string `json:"state_id,omitempty"`
	Priority  string `json:"priority,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Cache is the full content of plane-sync.json.
//
// States maps a normalized status key (backlog, pending, in_progress,
// completed, cancelled, plus in_review and ready_to_merge when the
// project defines those states) to the Plane state UUID. Linked maps an
// issue key to the task file it is bound to.
type Cache struct {
	Project  Project           `json:"project"`
	States   map[string]string `json:"states"`
	Issues   map[string]*Issue `json:"issues"`
	Linked   map[string]string `json:"linked"`
	LastSync string            `json:"lastSync,omitempty"`
}

func newCache() *Cache {
	return &Cache{
		States: make(map[string]string),
		Issues: make(map[string]*Issue),
		Linked: make(map[string]string),
	}
}

// Store reads and writes the cache file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a store over the default cache file under root.
func NewStore(root string) *Store {
	return &Store{path: filepath.Join(root, DefaultCacheFile), now: time.Now}
}

// NewStoreWithPath creates a store at a specific file (for testing).
func NewStoreWithPath(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Load reads the cache. A missing file yields (nil, nil) so callers can
// distinguish "never synced" from a read failure.
func (s *Store) Load() (*Cache, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plane cache: %w", err)
	}
	cache := newCache()
	if err := json.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("parsing plane cache: %w", err)
	}
	if cache.States == nil {
		cache.States = make(map[string]string)
	}
	if cache.Issues == nil {
		cache.Issues = make(map[string]*Issue)
	}
	if cache.Linked == nil {
		cache.Linked = make(map[string]string)
	}
	return cache, nil
}

// Update applies fn to the cache under an exclusive lock and writes the
// result back atomically. A missing cache file starts from an empty
// cache. fn returning an error aborts without writing.
func (s *Store) Update(fn func(*Cache) error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	lock, err := fslock.Acquire(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("locking plane cache: %w", err)
	}
	defer lock.Unlock()

	cache, err := s.Load()
	if err != nil {
		return err
	}
	if cache == nil {
		cache = newCache()
	}
	if err := fn(cache); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plane cache: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing plane cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing plane cache: %w", err)
	}
	return nil
}

// timestamp formats the sync stamp the cache uses: UTC RFC3339 with a
// "Z" suffix.
func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
