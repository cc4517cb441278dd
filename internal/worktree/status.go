package worktree

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claudekit/claudekit/internal/task"
)

// TaskRef is the compact task view embedded in status output.
type TaskRef struct {
	File   string `json:"file"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// WorktreeInfo is one worktree with its mapped tasks.
type WorktreeInfo struct {
	Path            string    `json:"path"`
	Branch          string    `json:"branch,omitempty"`
	Head            string    `json:"head,omitempty"`
	IsCurrent       bool      `json:"is_current"`
	IsTreesWorktree bool      `json:"is_trees_worktree"`
	Tasks           []TaskRef `json:"tasks"`
	TaskCount       int       `json:"task_count"`
}

// MissingWorktree is a branch that has tasks but no worktree yet.
type MissingWorktree struct {
	Branch        string    `json:"branch"`
	Folder        string    `json:"folder"`
	SuggestedPath string    `json:"suggested_path"`
	Tasks         []TaskRef `json:"tasks"`
	TaskCount     int       `json:"task_count"`
}

// Overview is the full worktree status report.
type Overview struct {
	CurrentBranch          string            `json:"current_branch"`
	Worktrees              []WorktreeInfo    `json:"worktrees"`
	BranchesWithoutWorktree []MissingWorktree `json:"branches_without_worktree"`
	Summary                struct {
		TotalWorktrees          int `json:"total_worktrees"`
		TotalBranchesWithTasks  int `json:"total_branches_with_tasks"`
	} `json:"summary"`
}

// Status builds the worktree overview for a repository, mapping each
// branch's worktree to the tasks that name it.
func Status(ctx context.Context, repoDir, tasksDir string) (*Overview, error) {
	worktrees, err := List(ctx, repoDir)
	if err != nil {
		return nil, err
	}

	branchTasks := loadBranchTasks(tasksDir)

	overview := &Overview{
		CurrentBranch:           CurrentBranch(ctx, repoDir),
		Worktrees:               []WorktreeInfo{},
		BranchesWithoutWorktree: []MissingWorktree{},
	}
	overview.Summary.TotalWorktrees = len(worktrees)
	overview.Summary.TotalBranchesWithTasks = len(branchTasks)

	seen := make(map[string]bool)
	for _, wt := range worktrees {
		head := wt.Head
		if len(head) > 8 {
			head = head[:8]
		}
		refs := branchTasks[wt.Branch]
		if refs == nil {
			refs = []TaskRef{}
		}
		overview.Worktrees = append(overview.Worktrees, WorktreeInfo{
			Path:            wt.Path,
			Branch:          wt.Branch,
			Head:            head,
			IsCurrent:       wt.Branch != "" && wt.Branch == overview.CurrentBranch,
			IsTreesWorktree: strings.Contains(wt.Path, string(filepath.Separator)+".trees"+string(filepath.Separator)) || strings.HasSuffix(wt.Path, string(filepath.Separator)+".trees"),
			Tasks:           refs,
			TaskCount:       len(refs),
		})
		if wt.Branch != "" {
			seen[wt.Branch] = true
		}
	}

	var missing []string
	for branch := range branchTasks {
		if !seen[branch] {
			missing = append(missing, branch)
		}
	}
	sort.Strings(missing)
	for _, branch := range missing {
		folder := task.NormalizeBranch(branch)
		refs := branchTasks[branch]
		overview.BranchesWithoutWorktree = append(overview.BranchesWithoutWorktree, MissingWorktree{
			Branch:        branch,
			Folder:        folder,
			SuggestedPath: filepath.Join(".trees", folder),
			Tasks:         refs,
			TaskCount:     len(refs),
		})
	}

	return overview, nil
}

// loadBranchTasks maps branch names to the tasks that declare them. A
// missing tasks directory is fine; the overview just shows no tasks.
func loadBranchTasks(tasksDir string) map[string][]TaskRef {
	branchTasks := make(map[string][]TaskRef)
	if tasksDir == "" {
		return branchTasks
	}
	if _, err := os.Stat(tasksDir); err != nil {
		return branchTasks
	}

	tasks, _, err := task.ListDir(tasksDir)
	if err != nil {
		return branchTasks
	}
	for _, t := range tasks {
		branch := t.Frontmatter.Branch
		if branch == "" {
			continue
		}
		branchTasks[branch] = append(branchTasks[branch], TaskRef{
			File:   t.Filename,
			Name:   t.Name(),
			Status: t.Status(),
		})
	}
	return branchTasks
}
