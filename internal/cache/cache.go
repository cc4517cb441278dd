// Package cache implements the content-addressed query cache for offloaded
// gemini queries.
//
// Entries live under <root>/<project-hash>/<key>/ where key is a digest over
// the prompt, the model, and the identity (path, mtime, size) of every file
// included as context. A cached entry is served only while none of its source
// files has been modified since the entry was written.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/claudekit/claudekit/internal/gemini"
)

const (
	fullResponseFile = "full_response.md"
	summaryFile      = "summary.md"
	metadataFile     = "metadata.json"

	// summaryLimit caps the truncated summary stored next to the full response.
	summaryLimit = 2000
)

// defaultIgnoreDirs are directory names never included in a context walk.
var defaultIgnoreDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".trees":       true,
}

// SourceFile identifies one file that contributed to a cache key.
type SourceFile struct {
	Path  string `json:"path"`
	MTime int64  `json:"mtime"`
	Size  int64  `json:"size"`
}

// Metadata is the metadata.json sidecar of a cache entry.
type Metadata struct {
	Key           string             `json:"key"`
	Model         string             `json:"model,omitempty"`
	PromptPreview string             `json:"prompt_preview"`
	CreatedAt     time.Time          `json:"created_at"`
	SourceFiles   []SourceFile       `json:"source_files,omitempty"`
	Tokens        *gemini.TokenUsage `json:"tokens,omitempty"`
}

// Entry is a materialized cache entry.
type Entry struct {
	Meta    Metadata
	Summary string
	Dir     string
}

// Store manages the per-project cache directory.
type Store struct {
	dir string
}

// NewStore creates a store for the given working directory. The cache root
// defaults to ~/.claude/offload-cache and can be moved with
// CLAUDEKIT_CACHE_DIR; each project gets its own subdirectory keyed by a
// hash of the working directory.
func NewStore(cwd string) (*Store, error) {
	root := os.Getenv("CLAUDEKIT_CACHE_DIR")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		root = filepath.Join(home, ".claude", "offload-cache")
	}

	h := sha256.Sum256([]byte(cwd))
	projectHash := hex.EncodeToString(h[:16])

	return &Store{dir: filepath.Join(root, projectHash)}, nil
}

// NewStoreWithDir creates a store at a specific directory (for testing).
func NewStoreWithDir(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// CollectSources walks the include directories and returns every regular
// file's identity, sorted by path. Ignore patterns are doublestar globs
// matched against slash-separated paths relative to each include dir;
// well-known junk directories are always skipped.
func CollectSources(dirs, ignore []string) ([]SourceFile, error) {
	var sources []SourceFile

	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		root := filepath.Clean(dir)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && defaultIgnoreDirs[d.Name()] {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			for _, pattern := range ignore {
				if ok, _ := doublestar.Match(pattern, rel); ok {
					return nil
				}
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			sources = append(sources, SourceFile{
				Path:  path,
				MTime: info.ModTime().Unix(),
				Size:  info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

// Key computes the cache key for a query. Identical inputs always hash to
// the same key; any mtime or size change of a source file changes it.
func Key(prompt, model string, sources []SourceFile) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(model))
	for _, sf := range sources {
		fmt.Fprintf(h, "\x00%s\x00%d\x00%d", sf.Path, sf.MTime, sf.Size)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Lookup returns the entry for key if it exists and is still fresh: none of
// the current source files may be newer than the entry.
func (s *Store) Lookup(key string, sources []SourceFile) (*Entry, bool) {
	entryDir := filepath.Join(s.dir, key)

	data, err := os.ReadFile(filepath.Join(entryDir, metadataFile))
	if err != nil {
		return nil, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false
	}

	cutoff := meta.CreatedAt.Unix()
	for _, sf := range sources {
		if sf.MTime > cutoff {
			return nil, false
		}
	}

	summary, err := os.ReadFile(filepath.Join(entryDir, summaryFile))
	if err != nil {
		return nil, false
	}

	return &Entry{Meta: meta, Summary: string(summary), Dir: entryDir}, true
}

// Put persists a query response under key and returns the stored entry.
func (s *Store) Put(key, prompt, model, response string, sources []SourceFile, tokens *gemini.TokenUsage) (*Entry, error) {
	entryDir := filepath.Join(s.dir, key)
	if err := os.MkdirAll(entryDir, 0700); err != nil {
		return nil, fmt.Errorf("creating cache entry: %w", err)
	}

	meta := Metadata{
		Key:           key,
		Model:         model,
		PromptPreview: preview(prompt, 100),
		CreatedAt:     time.Now(),
		SourceFiles:   sources,
		Tokens:        tokens,
	}

	summary := Summarize(response)

	if err := os.WriteFile(filepath.Join(entryDir, fullResponseFile), []byte(response), 0600); err != nil {
		return nil, fmt.Errorf("writing full response: %w", err)
	}
	if err := os.WriteFile(filepath.Join(entryDir, summaryFile), []byte(summary), 0600); err != nil {
		return nil, fmt.Errorf("writing summary: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(entryDir, metadataFile), data, 0600); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	return &Entry{Meta: meta, Summary: summary, Dir: entryDir}, nil
}

// FullResponse reads the stored full response for an entry.
func (e *Entry) FullResponse() (string, error) {
	data, err := os.ReadFile(filepath.Join(e.Dir, fullResponseFile))
	if err != nil {
		return "", fmt.Errorf("reading full response: %w", err)
	}
	return string(data), nil
}

// Prune removes entries older than maxAge and returns how many were deleted.
// There is no automatic eviction; this is the manual escape hatch for
// otherwise unbounded growth.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		entryDir := filepath.Join(s.dir, entry.Name())

		data, err := os.ReadFile(filepath.Join(entryDir, metadataFile))
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil || meta.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(entryDir); err != nil {
			return removed, fmt.Errorf("removing cache entry %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Stats reports entry count and total size on disk.
func (s *Store) Stats() (count int, bytes int64) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count++
		_ = filepath.WalkDir(filepath.Join(s.dir, entry.Name()), func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				bytes += info.Size()
			}
			return nil
		})
	}
	return count, bytes
}

// Summarize truncates a response to the summary limit at a line boundary and
// appends an elision marker.
func Summarize(response string) string {
	if len(response) <= summaryLimit {
		return response
	}
	cut := response[:summaryLimit]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "\n\n…(truncated; see full_response.md)"
}

// preview returns the first n bytes of s, trimmed at a rune boundary.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !isRuneStart(s[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
