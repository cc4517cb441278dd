package plane

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/claudekit/claudekit/internal/task"
)

// UnlinkedTask is a local task file with no cache link. ClaimsIssue is
// set when the frontmatter names a plane_issue the cache does not have
// a link for.
type UnlinkedTask struct {
	File        string `json:"file"`
	ClaimsIssue string `json:"claims_issue,omitempty"`
	Status      string `json:"status,omitempty"`
}

// StatusMismatch is a linked pair whose task status and Plane state
// disagree.
type StatusMismatch struct {
	Issue         string `json:"issue"`
	Task          string `json:"task"`
	TaskStatus    string `json:"task_status"`
	PlaneState    string `json:"plane_state"`
	ExpectedState string `json:"expected_state"`
}

// DiscoverySummary holds the counts for a discovery run.
type DiscoverySummary struct {
	UnlinkedIssues int `json:"unlinked_issues"`
	UnlinkedTasks  int `json:"unlinked_tasks"`
	Mismatches     int `json:"mismatches"`
	TotalIssues    int `json:"total_issues"`
	TotalLinked    int `json:"total_linked"`
}

// Discovery compares the cache against local task files.
type Discovery struct {
	UnlinkedIssues   map[string]IssueBrief `json:"unlinked_issues"`
	UnlinkedTasks    []UnlinkedTask        `json:"unlinked_tasks"`
	StatusMismatches []StatusMismatch      `json:"status_mismatches"`
	Summary          DiscoverySummary      `json:"summary"`
}

// taskStatusState maps a frontmatter status to the Plane state name it
// should correspond to.
func taskStatusState(status string) string {
	switch strings.ToLower(status) {
	case "backlog":
		return "Backlog"
	case "pending":
		return "Todo"
	case "in_progress", "in-progress":
		return "In Progress"
	case "completed":
		return "Done"
	case "cancelled":
		return "Cancelled"
	default:
		return status
	}
}

// Discover reports unlinked issues, unlinked tasks, and (when
// checkStatus is set) linked pairs whose statuses disagree.
func (s *Store) Discover(tasksDir string, checkStatus bool) (*Discovery, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}

	d := &Discovery{
		UnlinkedIssues:   make(map[string]IssueBrief),
		UnlinkedTasks:    []UnlinkedTask{},
		StatusMismatches: []StatusMismatch{},
	}

	for key, issue := range cache.Issues {
		if _, ok := cache.Linked[key]; !ok {
			d.UnlinkedIssues[key] = IssueBrief{Name: issue.Name, State: issue.State}
		}
	}

	linkedTasks := make(map[string]bool, len(cache.Linked))
	for _, taskFile := range cache.Linked {
		linkedTasks[taskFile] = true
	}

	tasks, _, err := task.ListDir(tasksDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		tasks = nil
	}
	for _, t := range tasks {
		if linkedTasks[t.Filename] {
			continue
		}
		entry := UnlinkedTask{File: t.Filename, Status: t.Frontmatter.Status}
		if claimed := t.Frontmatter.PlaneIssue; claimed != "" {
			if _, ok := cache.Linked[claimed]; ok {
				// Cache knows the link under this key already; the
				// task just isn't the file it points at. Skip it.
				continue
			}
			entry.ClaimsIssue = claimed
		}
		d.UnlinkedTasks = append(d.UnlinkedTasks, entry)
	}

	if checkStatus {
		for issueKey, taskFile := range cache.Linked {
			t, err := task.Load(filepath.Join(tasksDir, taskFile))
			if err != nil {
				continue
			}
			issue, ok := cache.Issues[issueKey]
			if !ok {
				continue
			}
			expected := taskStatusState(t.Frontmatter.Status)
			if !strings.EqualFold(expected, issue.State) {
				d.StatusMismatches = append(d.StatusMismatches, StatusMismatch{
					Issue:         issueKey,
					Task:          taskFile,
					TaskStatus:    t.Frontmatter.Status,
					PlaneState:    issue.State,
					ExpectedState: expected,
				})
			}
		}
	}

	d.Summary = DiscoverySummary{
		UnlinkedIssues: len(d.UnlinkedIssues),
		UnlinkedTasks:  len(d.UnlinkedTasks),
		Mismatches:     len(d.StatusMismatches),
		TotalIssues:    len(cache.Issues),
		TotalLinked:    len(cache.Linked),
	}
	return d, nil
}
