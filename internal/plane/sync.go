package plane

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SyncData is the payload piped in from an MCP fetch: project metadata,
// the project's workflow states, and a page of issues.
type SyncData struct {
	Project *syncProject `json:"project"`
	States  []syncState  `json:"states"`
	Issues  []syncIssue  `json:"issues"`
}

type syncProject struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Workspace  string `json:"workspace"`
}

type syncState struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

type syncIssue struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SequenceID int       `json:"sequence_id"`
	State      idOrValue `json:"state"`
	Priority   idOrValue `json:"priority"`
	UpdatedAt  string    `json:"updated_at"`
}

// idOrValue accepts either a bare string or an object with an "id"
// field. The Plane API returns both shapes depending on the endpoint.
type idOrValue struct {
	Value string
}

func (v *idOrValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Value = s
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parsing id field: %w", err)
	}
	v.Value = obj.ID
	return nil
}

// SyncResult summarizes what a sync changed.
type SyncResult struct {
	Success     bool     `json:"success"`
	IssuesCount int      `json:"issues_count"`
	StatesCount int      `json:"states_count"`
	New         []string `json:"new"`
	Updated     []string `json:"updated"`
	Touched     bool     `json:"touched,omitempty"`
}

// stateGroupStatus maps a Plane state group to the task status
// convention used in frontmatter.
func stateGroupStatus(group string) string {
	switch group {
	case "backlog":
		return "backlog"
	case "unstarted":
		return "pending"
	case "started":
		return "in_progress"
	case "completed":
		return "completed"
	case "cancelled":
		return "cancelled"
	default:
		return group
	}
}

// Sync merges fetched data into the cache and stamps lastSync. Issues
// are keyed "IDENT-seq"; an issue already present counts as updated
// only when its updated_at changed.
func (s *Store) Sync(data *SyncData) (*SyncResult, error) {
	result := &SyncResult{Success: true, New: []string{}, Updated: []string{}}

	err := s.Update(func(cache *Cache) error {
		if data.Project != nil {
			workspace := data.Project.Workspace
			if workspace == "" {
				workspace = cache.Project.Workspace
			}
			cache.Project = Project{
				ID:         data.Project.ID,
				Identifier: data.Project.Identifier,
				Name:       data.Project.Name,
				Workspace:  workspace,
			}
		}

		statesByID := make(map[string]syncState, len(data.States))
		for _, state := range data.States {
			statesByID[state.ID] = state
			statusKey := stateGroupStatus(state.Group)

			// Several states can share a group ("In Review" and
			// "In Progress" are both "started"). Review states get
			// their own keys; otherwise first state in a group wins.
			nameKey := strings.ReplaceAll(strings.ToLower(state.Name), " ", "_")
			if nameKey == "in_review" || nameKey == "ready_to_merge" {
				cache.States[nameKey] = state.ID
			} else if _, ok := cache.States[statusKey]; !ok {
				cache.States[statusKey] = state.ID
			}
		}

		identifier := cache.Project.Identifier
		if identifier == "" {
			identifier = "PROJ"
		}
		for _, issue := range data.Issues {
			key := fmt.Sprintf("%s-%d", identifier, issue.SequenceID)

			stateName := ""
			if state, ok := statesByID[issue.State.Value]; ok {
				stateName = state.Name
			} else if existing, ok := cache.Issues[key]; ok {
				stateName = existing.State
			}

			priority := issue.Priority.Value
			if priority == "" {
				priority = "none"
			}

			entry := &Issue{
				ID:        issue.ID,
				Name:      issue.Name,
				State:     stateName,
				StateID:   issue.State.Value,
				Priority:  priority,
				UpdatedAt: issue.UpdatedAt,
			}

			if existing, ok := cache.Issues[key]; !ok {
				result.New = append(result.New, key)
			} else if existing.UpdatedAt != entry.UpdatedAt {
				result.Updated = append(result.Updated, key)
			}
			cache.Issues[key] = entry
		}

		cache.LastSync = s.timestamp()
		result.IssuesCount = len(cache.Issues)
		result.StatesCount = len(cache.States)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(result.New)
	sort.Strings(result.Updated)
	return result, nil
}

// Touch refreshes lastSync without changing cached data.
func (s *Store) Touch() (*SyncResult, error) {
	result := &SyncResult{Success: true, Touched: true}
	err := s.Update(func(cache *Cache) error {
		cache.LastSync = s.timestamp()
		result.IssuesCount = len(cache.Issues)
		result.StatesCount = len(cache.States)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddResult reports a single-issue upsert.
type AddResult struct {
	Success bool   `json:"success"`
	Issue   string `json:"issue"`
	Action  string `json:"action"`
	Name    string `json:"name,omitempty"`
}

// AddIssue upserts one issue under key. ID and Name are required; a
// missing UpdatedAt is stamped with the current time.
func (s *Store) AddIssue(key string, issue Issue) (*AddResult, error) {
	if issue.ID == "" || issue.Name == "" {
		return nil, fmt.Errorf("issue %s: id and name are required", key)
	}
	if issue.Priority == "" {
		issue.Priority = "none"
	}

	result := &AddResult{Success: true, Issue: key, Name: issue.Name}
	err := s.Update(func(cache *Cache) error {
		if _, ok := cache.Issues[key]; ok {
			result.Action = "updated"
		} else {
			result.Action = "added"
		}
		if issue.UpdatedAt == "" {
			issue.UpdatedAt = s.timestamp()
		}
		cache.Issues[key] = &issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
