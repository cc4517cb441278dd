// Package sessions maps user-chosen names to warm gemini sessions.
//
// The gemini CLI addresses sessions by a positional index that shifts as
// sessions are purged, so the index is useless as a stored reference. We
// keep the stable session UUID the CLI itself generates and re-resolve it
// to the current index immediately before every use. The mapping file is
// written under an exclusive flock with an atomic rename so that parallel
// worktree agents cannot corrupt it.
package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claudekit/claudekit/internal/fslock"
)

// Mapping records one named session.
type Mapping struct {
	SessionID         string    `json:"sessionId"`
	SessionFile       string    `json:"sessionFile,omitempty"`
	GeminiProjectHash string    `json:"geminiProjectHash,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	LastTurn          time.Time `json:"lastTurn"`
	LastPromptPreview string    `json:"lastPromptPreview,omitempty"`
}

// LastUsed records the most recent continue/create across all names.
type LastUsed struct {
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
	PromptPreview string    `json:"promptPreview,omitempty"`
}

// State is the full content of sessions.json.
type State struct {
	Sessions map[string]*Mapping `json:"sessions"`
	LastUsed *LastUsed           `json:"lastUsed,omitempty"`
}

// Store reads and writes the session mapping file.
type Store struct {
	path string
}

// NewStore picks the mapping file location: project-level
// .claudekit/sessions.json when the project already has a .claudekit
// directory, user-level ~/.config/claudekit/sessions.json otherwise.
func NewStore(cwd string) (*Store, error) {
	projectDir := filepath.Join(cwd, ".claudekit")
	if info, err := os.Stat(projectDir); err == nil && info.IsDir() {
		return &Store{path: filepath.Join(projectDir, "sessions.json")}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "claudekit")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	return &Store{path: filepath.Join(dir, "sessions.json")}, nil
}

// NewStoreWithPath creates a store at a specific file (for testing).
func NewStoreWithPath(path string) *Store {
	return &Store{path: path}
}

// Path returns the mapping file location.
func (s *Store) Path() string { return s.path }

// Load reads the current state. A missing or corrupt file yields an empty
// state, matching the forgiving contract of the JSON state files.
func (s *Store) Load() (*State, error) {
	state := &State{Sessions: make(map[string]*Mapping)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, fmt.Errorf("reading sessions file: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return &State{Sessions: make(map[string]*Mapping)}, nil
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]*Mapping)
	}
	return state, nil
}

// Update applies fn to the state under an exclusive lock and writes the
// result back atomically. fn returning an error aborts without writing.
func (s *Store) Update(fn func(*State) error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating sessions directory: %w", err)
	}

	lock, err := fslock.Acquire(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("locking sessions file: %w", err)
	}
	defer lock.Unlock()

	state, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing sessions file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing sessions file: %w", err)
	}
	return nil
}

// ProjectHash mirrors the digest gemini uses to key its per-project
// directories under ~/.gemini/tmp/.
func ProjectHash(cwd string) string {
	h := sha256.Sum256([]byte(cwd))
	return hex.EncodeToString(h[:])
}
