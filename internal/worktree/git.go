// Package worktree inspects git worktrees and maps them to task files so
// parallel agents can be orchestrated across branches.
package worktree

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// gitTimeout bounds every git invocation; these are all local metadata reads.
const gitTimeout = 15 * time.Second

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string `json:"path"`
	Head     string `json:"head,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Bare     bool   `json:"bare,omitempty"`
	Detached bool   `json:"detached,omitempty"`
}

// runGit runs git with args in dir and returns trimmed stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// List returns the repository's worktrees. A directory that is not a git
// repository yields an empty list, not an error, to match the forgiving
// behavior callers expect from status overviews.
func List(ctx context.Context, dir string) ([]Worktree, error) {
	out, err := runGit(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, nil
	}
	return parsePorcelain(out), nil
}

// parsePorcelain parses `git worktree list --porcelain` output: records are
// separated by blank lines, each starting with a "worktree <path>" line.
func parsePorcelain(out string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				worktrees = append(worktrees, *current)
			}
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case current == nil:
			// Ignore anything before the first record.
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "bare":
			current.Bare = true
		case line == "detached":
			current.Detached = true
		}
	}
	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}

// CurrentBranch returns the checked-out branch in dir, or "" when detached
// or outside a repository.
func CurrentBranch(ctx context.Context, dir string) string {
	out, err := runGit(ctx, dir, "branch", "--show-current")
	if err != nil {
		return ""
	}
	return out
}

// UncommittedChanges lists the dirty paths reported by status --porcelain
// for a worktree.
func UncommittedChanges(ctx context.Context, worktreePath string) ([]string, error) {
	out, err := runGit(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var changes []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			changes = append(changes, line)
		}
	}
	return changes, nil
}

// IsMerged reports whether branch is merged into base.
func IsMerged(ctx context.Context, dir, branch, base string) bool {
	out, err := runGit(ctx, dir, "branch", "--merged", base)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		candidate := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if candidate == branch {
			return true
		}
	}
	return false
}
