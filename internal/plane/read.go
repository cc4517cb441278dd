package plane

import (
	"fmt"
	"strings"
)

// ErrNoCache is returned by read operations when the cache file does
// not exist yet.
var ErrNoCache = fmt.Errorf("plane cache not found, run sync first")

func (s *Store) loadRequired() (*Cache, error) {
	cache, err := s.Load()
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, ErrNoCache
	}
	return cache, nil
}

// Summary is the condensed cache overview.
type Summary struct {
	Project     string `json:"project"`
	ProjectName string `json:"project_name"`
	ProjectID   string `json:"project_id,omitempty"`
	Workspace   string `json:"workspace,omitempty"`
	IssuesCount int    `json:"issues_count"`
	LinkedCount int    `json:"linked_count"`
	StatesCount int    `json:"states_count"`
	LastSync    string `json:"last_sync,omitempty"`
}

// Summary reports cache-level counts without listing issues.
func (s *Store) Summary() (*Summary, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}
	project := cache.Project.Identifier
	if project == "" {
		project = "Unknown"
	}
	name := cache.Project.Name
	if name == "" {
		name = "Unknown"
	}
	return &Summary{
		Project:     project,
		ProjectName: name,
		ProjectID:   cache.Project.ID,
		Workspace:   cache.Project.Workspace,
		IssuesCount: len(cache.Issues),
		LinkedCount: len(cache.Linked),
		StatesCount: len(cache.States),
		LastSync:    cache.LastSync,
	}, nil
}

// IssueBrief is the condensed per-issue listing entry.
type IssueBrief struct {
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// Issues lists cached issues, optionally filtered by state name
// (case-insensitive).
func (s *Store) Issues(stateFilter string) (map[string]IssueBrief, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}
	result := make(map[string]IssueBrief)
	for key, issue := range cache.Issues {
		if stateFilter != "" && !strings.EqualFold(issue.State, stateFilter) {
			continue
		}
		result[key] = IssueBrief{Name: issue.Name, State: issue.State}
	}
	return result, nil
}

// IssueDetail is a full issue plus its link, if any.
type IssueDetail struct {
	Issue
	Key        string `json:"issue"`
	LinkedTask string `json:"linked_task,omitempty"`
}

// Issue returns the full cached record for one issue key.
func (s *Store) Issue(key string) (*IssueDetail, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}
	issue, ok := cache.Issues[key]
	if !ok {
		return nil, fmt.Errorf("issue %s not found in cache", key)
	}
	return &IssueDetail{Issue: *issue, Key: key, LinkedTask: cache.Linked[key]}, nil
}

// LinkedEntry pairs a linked issue with its task file.
type LinkedEntry struct {
	Task  string `json:"task"`
	Name  string `json:"name,omitempty"`
	State string `json:"state,omitempty"`
}

// Linked lists all issue-to-task links.
func (s *Store) Linked() (map[string]LinkedEntry, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}
	result := make(map[string]LinkedEntry)
	for key, taskFile := range cache.Linked {
		entry := LinkedEntry{Task: taskFile}
		if issue, ok := cache.Issues[key]; ok {
			entry.Name = issue.Name
			entry.State = issue.State
		}
		result[key] = entry
	}
	return result, nil
}

// Unlinked lists issues with no task link.
func (s *Store) Unlinked() (map[string]IssueBrief, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}
	result := make(map[string]IssueBrief)
	for key, issue := range cache.Issues {
		if _, ok := cache.Linked[key]; !ok {
			result[key] = IssueBrief{Name: issue.Name, State: issue.State}
		}
	}
	return result, nil
}

// States returns the status-key to state-UUID mapping.
func (s *Store) States() (map[string]string, error) {
	cache, err := s.loadRequired()
	if err != nil {
		return nil, err
	}
	return cache.States, nil
}
