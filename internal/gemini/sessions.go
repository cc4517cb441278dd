package gemini

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// listTimeout bounds the cheap bookkeeping invocations (--list-sessions,
// --delete-session, --version).
const listTimeout = 10 * time.Second

// SessionEntry is one line of `gemini --list-sessions`. Index is positional
// and volatile: it shifts whenever the CLI purges sessions. SessionID is the
// stable UUID when the description carries one.
type SessionEntry struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	SessionID   string `json:"sessionId,omitempty"`
}

var (
	sessionLineRe = regexp.MustCompile(`^(\d+)[:.\s]+(.+)$`)
	uuidRe        = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// ListSessions returns the CLI's current session list. A missing or empty
// list is not an error.
func (r *Runner) ListSessions(ctx context.Context) ([]SessionEntry, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.binary, "--list-sessions")
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The CLI has printed the list on either stream depending on version.
	err := cmd.Run()
	output := stdout.String() + stderr.String()

	if strings.Contains(output, "No previous sessions") {
		return nil, nil
	}
	if err != nil && strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	return ParseSessionList(output), nil
}

// ParseSessionList parses `N: description` lines. Lines that do not match
// are skipped; the format has varied across CLI versions.
func ParseSessionList(output string) []SessionEntry {
	var sessions []SessionEntry
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := sessionLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		desc := strings.TrimSpace(m[2])
		sessions = append(sessions, SessionEntry{
			Index:       idx,
			Description: desc,
			SessionID:   strings.ToLower(uuidRe.FindString(desc)),
		})
	}
	return sessions
}

// DeleteSession removes a session by its current positional index.
func (r *Runner) DeleteSession(ctx context.Context, index int) error {
	cmdCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.binary, "--delete-session", strconv.Itoa(index))
	cmd.Dir = r.workDir
	if output, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return &Error{Message: "deleting session: " + msg, Diagnostic: classify(msg)}
	}
	return nil
}
