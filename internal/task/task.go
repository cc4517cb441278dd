// Package task reads and writes the Markdown+frontmatter task files that
// drive worktree orchestration.
//
// A task file is YAML frontmatter (name, branch, status, parent, created)
// followed by free-text sections; the only hard requirement is that the
// frontmatter parses. Files with no frontmatter at all are tolerated and
// yield a task with empty fields.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Task statuses in common use. The status field is free-form; these are the
// values the tooling aggregates on.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
)

// Frontmatter is the YAML header of a task file.
type Frontmatter struct {
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Branch     string   `yaml:"branch,omitempty" json:"branch,omitempty"`
	Status     string   `yaml:"status,omitempty" json:"status,omitempty"`
	Parent     string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Created    string   `yaml:"created,omitempty" json:"created,omitempty"`
	PlaneIssue string   `yaml:"plane_issue,omitempty" json:"plane_issue,omitempty"`
	Depends    []string `yaml:"depends,omitempty" json:"depends,omitempty"`
}

// ChecklistItem is one success-criteria checkbox.
type ChecklistItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task is a parsed task file.
type Task struct {
	File        string         `json:"file"`
	Filename    string         `json:"filename"`
	Frontmatter Frontmatter    `json:"frontmatter"`
	Body        string         `json:"-"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
}

// Name returns the frontmatter name, falling back to the filename stem.
func (t *Task) Name() string {
	if t.Frontmatter.Name != "" {
		return t.Frontmatter.Name
	}
	return strings.TrimSuffix(t.Filename, ".md")
}

// Status returns the frontmatter status, defaulting to "unknown".
func (t *Task) Status() string {
	if t.Frontmatter.Status != "" {
		return t.Frontmatter.Status
	}
	return "unknown"
}

// Folder converts the task's branch to its worktree folder name.
func (t *Task) Folder() string {
	return NormalizeBranch(t.Frontmatter.Branch)
}

// WorktreePath returns the conventional .trees/<folder> path for the task's
// branch, or "" when the task has no branch.
func (t *Task) WorktreePath() string {
	if t.Frontmatter.Branch == "" {
		return ""
	}
	return filepath.Join(".trees", t.Folder())
}

// ChecklistDone reports completed and total success-criteria counts.
func (t *Task) ChecklistDone() (done, total int) {
	for _, item := range t.Checklist {
		total++
		if item.Done {
			done++
		}
	}
	return done, total
}

// NormalizeBranch converts a branch name to a folder name: both "/" and "_"
// become "-".
func NormalizeBranch(branch string) string {
	return strings.NewReplacer("/", "-", "_", "-").Replace(branch)
}

// Load reads and parses a task file.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	t, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	t.File = path
	t.Filename = filepath.Base(path)
	return t, nil
}

// Parse parses task file content. Frontmatter is the block between leading
// "---" lines; a file without one is a task with empty frontmatter.
func Parse(content string) (*Task, error) {
	t := &Task{}

	body := content
	if strings.HasPrefix(content, "---") {
		parts := strings.SplitN(content, "---", 3)
		if len(parts) == 3 {
			if err := yaml.Unmarshal([]byte(parts[1]), &t.Frontmatter); err != nil {
				return nil, fmt.Errorf("parsing frontmatter: %w", err)
			}
			body = parts[2]
		}
	}

	t.Body = strings.TrimSpace(body)
	t.Checklist = parseChecklist(t.Body)
	return t, nil
}

// parseChecklist extracts "- [ ]" / "- [x]" items from the Success Criteria
// section. Items outside that section are not success criteria.
func parseChecklist(body string) []ChecklistItem {
	var items []ChecklistItem
	inSection := false

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			heading := strings.ToLower(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			inSection = strings.HasPrefix(heading, "success criteria")
			continue
		}
		if !inSection {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "- [ ] "):
			items = append(items, ChecklistItem{Text: trimmed[6:]})
		case strings.HasPrefix(trimmed, "- [x] "), strings.HasPrefix(trimmed, "- [X] "):
			items = append(items, ChecklistItem{Text: trimmed[6:], Done: true})
		}
	}
	return items
}
