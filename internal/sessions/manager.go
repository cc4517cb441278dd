package sessions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claudekit/claudekit/internal/gemini"
)

// Manager resolves named sessions against the gemini CLI's live list and
// runs queries on their behalf.
type Manager struct {
	store  *Store
	runner *gemini.Runner
	cwd    string
}

// NewManager wires a mapping store to a gemini runner.
func NewManager(store *Store, runner *gemini.Runner, cwd string) *Manager {
	return &Manager{store: store, runner: runner, cwd: cwd}
}

// StaleError reports a mapping whose session no longer exists in gemini.
// ValidNames lists the names that still resolve so the caller can recover.
type StaleError struct {
	Name       string
	SessionID  string
	ValidNames []string
}

func (e *StaleError) Error() string {
	msg := fmt.Sprintf("session %q (id %s) no longer exists in gemini", e.Name, e.SessionID)
	if len(e.ValidNames) > 0 {
		msg += "; valid sessions: " + strings.Join(e.ValidNames, ", ")
	}
	return msg
}

// Resolve maps a name to the session's current positional index.
//
// This is a best-effort reconciliation against an external process's
// ephemeral state: nothing prevents the index shifting between resolution
// and use. A mapping whose UUID has vanished from the live list is deleted
// and reported as a StaleError.
func (m *Manager) Resolve(ctx context.Context, name string) (int, *Mapping, error) {
	state, err := m.store.Load()
	if err != nil {
		return 0, nil, err
	}
	mapping, ok := state.Sessions[name]
	if !ok {
		return 0, nil, fmt.Errorf("named session %q not found; use create first", name)
	}
	if mapping.SessionID == "" {
		return 0, nil, fmt.Errorf("session %q has no stable session id recorded", name)
	}

	live, err := m.runner.ListSessions(ctx)
	if err != nil {
		return 0, nil, err
	}

	for _, entry := range live {
		if entry.SessionID == mapping.SessionID {
			return entry.Index, mapping, nil
		}
	}

	// The session was purged out from under us. Drop the dead mapping and
	// tell the caller which names still resolve.
	valid := m.validNames(state, live, name)
	_ = m.store.Update(func(s *State) error {
		delete(s.Sessions, name)
		return nil
	})
	return 0, nil, &StaleError{Name: name, SessionID: mapping.SessionID, ValidNames: valid}
}

// validNames returns the stored names (other than skip) whose UUIDs appear
// in the live list, sorted for stable output.
func (m *Manager) validNames(state *State, live []gemini.SessionEntry, skip string) []string {
	liveIDs := make(map[string]bool, len(live))
	for _, entry := range live {
		if entry.SessionID != "" {
			liveIDs[entry.SessionID] = true
		}
	}
	var names []string
	for n, mp := range state.Sessions {
		if n != skip && liveIDs[mp.SessionID] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Create starts a fresh session, learns its UUID from the live list, and
// stores the name mapping.
func (m *Manager) Create(ctx context.Context, name, prompt string, timeout time.Duration) (*gemini.Result, *Mapping, error) {
	res, err := m.runner.RunQuery(ctx, gemini.Request{Prompt: prompt, Timeout: timeout})
	if err != nil {
		return nil, nil, err
	}

	live, err := m.runner.ListSessions(ctx)
	if err != nil {
		return res, nil, fmt.Errorf("session created but listing failed: %w", err)
	}
	if len(live) == 0 {
		return res, nil, fmt.Errorf("session created but gemini reports no sessions")
	}

	// The newest session sorts first in gemini's list.
	newest := live[0]
	if newest.SessionID != "" {
		if _, err := uuid.Parse(newest.SessionID); err != nil {
			return res, nil, fmt.Errorf("gemini reported malformed session id %q", newest.SessionID)
		}
	}

	now := time.Now()
	mapping := &Mapping{
		SessionID:         newest.SessionID,
		SessionFile:       findSessionFile(m.cwd, newest.SessionID),
		GeminiProjectHash: ProjectHash(m.cwd),
		CreatedAt:         now,
		LastTurn:          now,
		LastPromptPreview: previewPrompt(prompt),
	}

	err = m.store.Update(func(s *State) error {
		s.Sessions[name] = mapping
		s.LastUsed = &LastUsed{Name: name, Timestamp: now, PromptPreview: previewPrompt(prompt)}
		return nil
	})
	if err != nil {
		return res, nil, err
	}
	return res, mapping, nil
}

// Continue resolves name and runs prompt against the session. An empty name
// continues gemini's latest session without touching any mapping.
func (m *Manager) Continue(ctx context.Context, name, prompt string, timeout time.Duration) (*gemini.Result, error) {
	resume := "latest"
	if name != "" {
		index, _, err := m.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		resume = strconv.Itoa(index)
	}

	res, err := m.runner.RunQuery(ctx, gemini.Request{Prompt: prompt, Resume: resume, Timeout: timeout})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updateErr := m.store.Update(func(s *State) error {
		if name != "" {
			if mp, ok := s.Sessions[name]; ok {
				mp.LastTurn = now
				mp.LastPromptPreview = previewPrompt(prompt)
			}
		}
		s.LastUsed = &LastUsed{Name: name, Timestamp: now, PromptPreview: previewPrompt(prompt)}
		return nil
	})
	if updateErr != nil {
		return res, updateErr
	}
	return res, nil
}

// Delete removes the named session from gemini and drops every name mapped
// to the same UUID. It returns the removed names.
func (m *Manager) Delete(ctx context.Context, name string) ([]string, error) {
	index, mapping, err := m.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := m.runner.DeleteSession(ctx, index); err != nil {
		return nil, err
	}

	var removed []string
	err = m.store.Update(func(s *State) error {
		for n, mp := range s.Sessions {
			if mp.SessionID == mapping.SessionID {
				delete(s.Sessions, n)
				removed = append(removed, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(removed)
	return removed, nil
}

// ListEntry is one row of the merged session view.
type ListEntry struct {
	Index       int       `json:"index"`
	Description string    `json:"description"`
	SessionID   string    `json:"sessionId,omitempty"`
	Name        string    `json:"name,omitempty"`
	LastTurn    time.Time `json:"lastTurn,omitempty"`
}

// List merges gemini's live session list with the stored name mappings.
func (m *Manager) List(ctx context.Context) ([]ListEntry, *LastUsed, error) {
	live, err := m.runner.ListSessions(ctx)
	if err != nil {
		return nil, nil, err
	}
	state, err := m.store.Load()
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]string) // sessionID -> name
	lastTurn := make(map[string]time.Time)
	for name, mp := range state.Sessions {
		if mp.SessionID != "" {
			byID[mp.SessionID] = name
			lastTurn[mp.SessionID] = mp.LastTurn
		}
	}

	entries := make([]ListEntry, 0, len(live))
	for _, entry := range live {
		le := ListEntry{
			Index:       entry.Index,
			Description: entry.Description,
			SessionID:   entry.SessionID,
		}
		if name, ok := byID[entry.SessionID]; ok && entry.SessionID != "" {
			le.Name = name
			le.LastTurn = lastTurn[entry.SessionID]
		}
		entries = append(entries, le)
	}
	return entries, state.LastUsed, nil
}

// findSessionFile looks for the chat file gemini wrote for a session under
// its per-project tmp directory. Best effort only; an empty result is fine.
func findSessionFile(cwd, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	pattern := filepath.Join(home, ".gemini", "tmp", ProjectHash(cwd), "*"+sessionID+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// previewPrompt keeps roughly the first 100 bytes of a prompt for display,
// trimmed at a rune boundary.
func previewPrompt(prompt string) string {
	const limit = 100
	if len(prompt) <= limit {
		return prompt
	}
	cut := prompt[:limit]
	for len(cut) > 0 && prompt[len(cut)]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
