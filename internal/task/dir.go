package task

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultTasksDir is where task files live relative to the project root.
const DefaultTasksDir = "sessions/tasks"

// ListDir loads every task file in dir, skipping templates and
// subdirectories. Files that fail to parse are skipped with their paths
// collected in skipped.
func ListDir(dir string) (tasks []*Task, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading tasks directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") || strings.Contains(name, "TEMPLATE") {
			continue
		}
		t, err := Load(filepath.Join(dir, name))
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Filename < tasks[j].Filename })
	return tasks, skipped, nil
}

// BranchGroup aggregates the tasks on one branch.
type BranchGroup struct {
	Branch         string         `json:"branch"`
	Folder         string         `json:"folder"`
	WorktreePath   string         `json:"worktree_path"`
	WorktreeExists bool           `json:"worktree_exists"`
	Tasks          []*Task        `json:"tasks"`
	Statuses       map[string]int `json:"statuses"`
}

// GroupByBranch splits tasks into per-branch groups plus the tasks that
// declare no branch. Groups are sorted by branch name. root is the
// directory worktree paths are checked against.
func GroupByBranch(tasks []*Task, root string) (groups []*BranchGroup, unbranched []*Task) {
	byBranch := make(map[string]*BranchGroup)

	for _, t := range tasks {
		branch := t.Frontmatter.Branch
		if branch == "" {
			unbranched = append(unbranched, t)
			continue
		}
		g, ok := byBranch[branch]
		if !ok {
			folder := NormalizeBranch(branch)
			wtPath := filepath.Join(".trees", folder)
			_, statErr := os.Stat(filepath.Join(root, wtPath))
			g = &BranchGroup{
				Branch:         branch,
				Folder:         folder,
				WorktreePath:   wtPath,
				WorktreeExists: statErr == nil,
				Statuses: map[string]int{
					StatusPending:    0,
					StatusInProgress: 0,
					StatusCompleted:  0,
					StatusBlocked:    0,
				},
			}
			byBranch[branch] = g
		}
		g.Tasks = append(g.Tasks, t)
		if _, tracked := g.Statuses[t.Status()]; tracked {
			g.Statuses[t.Status()]++
		}
	}

	for _, g := range byBranch {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Branch < groups[j].Branch })
	return groups, unbranched
}

// Archive moves a completed task file into the done/ subdirectory of its
// tasks dir. Refuses incomplete tasks unless force is set.
func Archive(tasksDir, filename string, force bool) (string, error) {
	src := filepath.Join(tasksDir, filename)
	t, err := Load(src)
	if err != nil {
		return "", err
	}
	if t.Status() != StatusCompleted && !force {
		return "", fmt.Errorf("task %s has status %q, not completed (use force to archive anyway)", filename, t.Status())
	}

	doneDir := filepath.Join(tasksDir, "done")
	if err := os.MkdirAll(doneDir, 0755); err != nil {
		return "", fmt.Errorf("creating done directory: %w", err)
	}

	dst := filepath.Join(doneDir, filename)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("archive target already exists: %s", dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("archiving task: %w", err)
	}
	return dst, nil
}
