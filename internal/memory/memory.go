// Package memory persists research findings and offloaded responses
// across sessions. Two backends implement the same interface: the
// hosted mem0 service when MEM0_API_KEY is set, and a local SQLite
// full-text store otherwise.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Source tag attached to every memory's metadata.
const Source = "claudekit"

// Item is one stored memory.
type Item struct {
	ID        string                 `json:"id"`
	Memory    string                 `json:"memory"`
	UserID    string                 `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Score     float64                `json:"score,omitempty"`
	CreatedAt string                 `json:"created_at,omitempty"`
}

// Status describes a backend's availability.
type Status struct {
	Backend string `json:"backend"`
	Ready   bool   `json:"ready"`
	Detail  string `json:"detail,omitempty"`
}

// Backend stores and retrieves memories for a user ID.
type Backend interface {
	Add(ctx context.Context, userID, text string, metadata map[string]interface{}) (*Item, error)
	Search(ctx context.Context, userID, query string, limit int) ([]Item, error)
	GetAll(ctx context.Context, userID string) ([]Item, error)
	Delete(ctx context.Context, id string) error
	Status(ctx context.Context) (*Status, error)
	Close() error
}

// Open picks the backend: hosted mem0 when MEM0_API_KEY is set, the
// local SQLite store otherwise.
func Open() (Backend, error) {
	if key := os.Getenv("MEM0_API_KEY"); key != "" {
		return NewHostedClient(key), nil
	}
	dir := os.Getenv("CLAUDEKIT_DATA_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "claudekit")
	}
	return OpenLocal(dir)
}

// StampMetadata fills the standard metadata fields: source, timestamp,
// and topic when set. Caller-provided keys win.
func StampMetadata(metadata map[string]interface{}, topic string) map[string]interface{} {
	stamped := map[string]interface{}{
		"source":    Source,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if topic != "" {
		stamped["topic"] = topic
	}
	for k, v := range metadata {
		stamped[k] = v
	}
	return stamped
}

// queryResult is the subset of an offload query result that
// StoreResponse understands.
type queryResult struct {
	Response string `json:"response"`
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Tokens   int    `json:"tokens,omitempty"`
}

// StoreResponse parses a query-result JSON document and stores its
// response text under userID with model and token metadata.
func StoreResponse(ctx context.Context, b Backend, userID, topic string, data []byte) (*Item, error) {
	var result queryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing response document: %w", err)
	}
	text := result.Response
	if text == "" {
		text = result.Text
	}
	if text == "" {
		return nil, fmt.Errorf("response document has no response or text field")
	}

	metadata := map[string]interface{}{}
	if result.Model != "" {
		metadata["model"] = result.Model
	}
	if result.Tokens > 0 {
		metadata["tokens"] = result.Tokens
	}
	return b.Add(ctx, userID, text, StampMetadata(metadata, topic))
}
