package spawn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SetupSessionsBypass rewrites <worktree>/sessions/sessions-state.json for
// autonomous agent work: implementation mode, bypass flag set, stale todos
// cleared, current task populated. Returns false when the worktree has no
// sessions state, which is not an error.
//
// This runs before the agent starts, deliberately outside the boundary that
// prevents the agent from enabling bypass mode itself.
func SetupSessionsBypass(worktreePath, taskName string) (bool, error) {
	path := filepath.Join(worktreePath, "sessions", "sessions-state.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading sessions state: %w", err)
	}

	var state map[string]interface{}
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("parsing sessions state: %w", err)
	}

	state["mode"] = "implementation"

	flags, _ := state["flags"].(map[string]interface{})
	if flags == nil {
		flags = make(map[string]interface{})
	}
	flags["bypass_mode"] = true
	state["flags"] = flags

	todos, _ := state["todos"].(map[string]interface{})
	if todos == nil {
		todos = make(map[string]interface{})
	}
	todos["active"] = []interface{}{}
	state["todos"] = todos

	if taskName != "" {
		current, _ := state["current_task"].(map[string]interface{})
		if current == nil {
			current = make(map[string]interface{})
		}
		current["name"] = taskName
		current["file"] = taskName + ".md"
		current["status"] = "in-progress"
		state["current_task"] = current
	}

	state["active_protocol"] = nil

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshaling sessions state: %w", err)
	}
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0644); err != nil {
		return false, fmt.Errorf("writing sessions state: %w", err)
	}
	return true, nil
}
