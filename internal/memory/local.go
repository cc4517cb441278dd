package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// LocalStore is the self-hosted backend: SQLite with an FTS5 index,
// ranked by bm25. It needs no external service or API key.
type LocalStore struct {
	db   *sql.DB
	path string
}

// OpenLocal opens (creating if needed) the memory database under dir.
func OpenLocal(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, "memory.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &LocalStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating memory database: %w", err)
	}
	return s, nil
}

func (s *LocalStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			text       TEXT NOT NULL,
			topic      TEXT,
			metadata   TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_memories_user    ON memories(user_id);
		CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			text,
			topic,
			id UNINDEXED,
			user_id UNINDEXED,
			tokenize='porter'
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add stores a memory and returns the created item.
func (s *LocalStore) Add(ctx context.Context, userID, text string, metadata map[string]interface{}) (*Item, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("memory text is empty")
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	topic := ""
	var metaJSON []byte
	if len(metadata) > 0 {
		if t, ok := metadata["topic"].(string); ok {
			topic = t
		}
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, text, topic, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, text, nullable(topic), nullable(string(metaJSON)), createdAt,
	); err != nil {
		return nil, fmt.Errorf("inserting memory: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories_fts (text, topic, id, user_id) VALUES (?, ?, ?, ?)`,
		text, topic, id, userID,
	); err != nil {
		return nil, fmt.Errorf("indexing memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing memory: %w", err)
	}

	return &Item{ID: id, Memory: text, UserID: userID, Metadata: metadata, CreatedAt: createdAt}, nil
}

// Search runs a bm25-ranked full-text search over userID's memories.
// An empty query returns the most recent ones instead.
func (s *LocalStore) Search(ctx context.Context, userID, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return s.recent(ctx, userID, limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.text, m.metadata, m.created_at, bm25(memories_fts)
		FROM memories_fts fts
		JOIN memories m ON m.id = fts.id
		WHERE memories_fts MATCH ? AND m.user_id = ?
		ORDER BY rank
		LIMIT ?`,
		ftsQuery, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	defer rows.Close()
	return scanItems(rows, true)
}

// GetAll lists every memory for userID, newest first.
func (s *LocalStore) GetAll(ctx context.Context, userID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, metadata, created_at
		FROM memories
		WHERE user_id = ?
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()
	return scanItems(rows, false)
}

// Delete removes one memory by ID.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}
	n, err := result.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("memory %s not found", id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("removing memory from index: %w", err)
	}
	return nil
}

// Status reports the database location and memory count.
func (s *LocalStore) Status(ctx context.Context) (*Status, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM memories`).Scan(&count); err != nil {
		return &Status{Backend: "local", Detail: err.Error()}, nil
	}
	return &Status{
		Backend: "local",
		Ready:   true,
		Detail:  fmt.Sprintf("%d memories at %s", count, s.path),
	}, nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) recent(ctx context.Context, userID string, limit int) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, metadata, created_at
		FROM memories
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent memories: %w", err)
	}
	defer rows.Close()
	return scanItems(rows, false)
}

func scanItems(rows *sql.Rows, withScore bool) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		var metaJSON sql.NullString
		var err error
		if withScore {
			err = rows.Scan(&item.ID, &item.UserID, &item.Memory, &metaJSON, &item.CreatedAt, &item.Score)
		} else {
			err = rows.Scan(&item.ID, &item.UserID, &item.Memory, &metaJSON, &item.CreatedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &item.Metadata); err != nil {
				return nil, fmt.Errorf("parsing memory metadata: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading memory rows: %w", err)
	}
	return items, nil
}

// sanitizeFTS wraps each word in quotes so user input cannot inject
// FTS5 query syntax. "fix auth bug" becomes `"fix" "auth" "bug"`.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
