// Package evals is a behavior test harness for agent runs: tool calls
// are recorded to a JSONL log by a hook, and expectations written in
// YAML are evaluated against the log afterwards.
package evals

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claudekit/claudekit/internal/fslock"
)

// Event is one recorded tool call, one JSON object per log line.
type Event struct {
	Timestamp     string          `json:"timestamp"`
	Event         string          `json:"event"`
	Tool          string          `json:"tool"`
	Input         json.RawMessage `json:"input,omitempty"`
	OutputPreview string          `json:"output_preview,omitempty"`
	IsError       bool            `json:"is_error,omitempty"`
}

// Recorder appends events to a run's JSONL log. Hook processes for the
// same run may write concurrently, so each append holds a lock.
type Recorder struct {
	path string
}

// NewRecorder creates a recorder for runID under logDir.
func NewRecorder(logDir, runID string) (*Recorder, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &Recorder{path: filepath.Join(logDir, runID+".jsonl")}, nil
}

// Path returns the log file location.
func (r *Recorder) Path() string { return r.path }

// Record appends one event. A missing timestamp is stamped with the
// current UTC time.
func (r *Recorder) Record(event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Event == "" {
		event.Event = "tool_call"
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	line = append(line, '\n')

	lock, err := fslock.AcquireBlocking(r.path + ".lock")
	if err != nil {
		return fmt.Errorf("locking event log: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// LoadEvents reads a JSONL log. Unparseable lines are an error with
// their line number; blank lines are skipped.
func LoadEvents(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}

	var events []Event
	lineNo := 0
	for _, line := range splitLines(data) {
		lineNo++
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("event log line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
