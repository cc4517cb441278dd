package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claudekit/claudekit/internal/task"
)

// CleanupReport says whether a branch's worktree can be torn down safely.
type CleanupReport struct {
	Branch         string `json:"branch"`
	Folder         string `json:"folder"`
	WorktreePath   string `json:"worktree_path"`
	WorktreeExists bool   `json:"worktree_exists"`
	SafeToCleanup  bool   `json:"safe_to_cleanup"`

	Checks struct {
		AllTasksCompleted    bool `json:"all_tasks_completed"`
		NoUncommittedChanges bool `json:"no_uncommitted_changes"`
		BranchMerged         bool `json:"branch_merged"`
	} `json:"checks"`

	Tasks struct {
		Total          int       `json:"total"`
		Completed      int       `json:"completed"`
		Incomplete     int       `json:"incomplete"`
		IncompleteList []TaskRef `json:"incomplete_list"`
	} `json:"tasks"`

	UncommittedChanges []string `json:"uncommitted_changes"`
	Blockers           []string `json:"blockers"`
	Warnings           []string `json:"warnings"`
}

// CheckCleanup evaluates the safety criteria for removing a branch's
// worktree: every task on the branch completed and no uncommitted changes.
// An unmerged branch or a missing worktree only warns.
func CheckCleanup(ctx context.Context, repoDir, tasksDir, branch, base string) (*CleanupReport, error) {
	if branch == "" {
		return nil, fmt.Errorf("branch is required")
	}
	if base == "" {
		base = "main"
	}

	folder := task.NormalizeBranch(branch)
	report := &CleanupReport{
		Branch:             branch,
		Folder:             folder,
		WorktreePath:       filepath.Join(".trees", folder),
		UncommittedChanges: []string{},
		Blockers:           []string{},
		Warnings:           []string{},
	}
	report.Tasks.IncompleteList = []TaskRef{}

	absWorktree := filepath.Join(repoDir, report.WorktreePath)
	if _, err := os.Stat(absWorktree); err == nil {
		report.WorktreeExists = true
	}

	// Tasks on the branch.
	if _, err := os.Stat(tasksDir); err == nil {
		tasks, _, err := task.ListDir(tasksDir)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if t.Frontmatter.Branch != branch {
				continue
			}
			report.Tasks.Total++
			ref := TaskRef{File: t.Filename, Name: t.Name(), Status: t.Status()}
			if t.Status() == task.StatusCompleted {
				report.Tasks.Completed++
			} else {
				report.Tasks.Incomplete++
				report.Tasks.IncompleteList = append(report.Tasks.IncompleteList, ref)
			}
		}
	}
	report.Checks.AllTasksCompleted = report.Tasks.Incomplete == 0

	// Dirty files in the worktree.
	report.Checks.NoUncommittedChanges = true
	if report.WorktreeExists {
		changes, err := UncommittedChanges(ctx, absWorktree)
		if err == nil && len(changes) > 0 {
			report.UncommittedChanges = changes
			report.Checks.NoUncommittedChanges = false
		}
	}

	report.Checks.BranchMerged = IsMerged(ctx, repoDir, branch, base)

	if !report.Checks.AllTasksCompleted {
		report.Blockers = append(report.Blockers,
			fmt.Sprintf("%d task(s) not completed", report.Tasks.Incomplete))
	}
	if !report.Checks.NoUncommittedChanges {
		report.Blockers = append(report.Blockers,
			fmt.Sprintf("%d uncommitted change(s)", len(report.UncommittedChanges)))
	}
	if !report.Checks.BranchMerged {
		report.Warnings = append(report.Warnings, "Branch not merged to "+base)
	}
	if !report.WorktreeExists {
		report.Warnings = append(report.Warnings, "Worktree does not exist (nothing to cleanup)")
	}

	report.SafeToCleanup = len(report.Blockers) == 0
	return report, nil
}
