package spawn

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WORKTREE_TERMINAL", "")
	t.Setenv("TERMINAL", "")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Emulator() != "alacritty" {
		t.Errorf("expected default alacritty, got %q", cfg.Emulator())
	}
	if !cfg.AutoStart() {
		t.Error("expected auto_start default true")
	}
	if cfg.Terminal.Claude.PromptTemplate != DefaultPromptTemplate {
		t.Error("expected default prompt template")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `terminal:
  emulator: kitty
  claude:
    auto_start: false
    prompt_template: "work on {task_name}"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WORKTREE_TERMINAL", "")
	t.Setenv("TERMINAL", "")
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Emulator() != "kitty" {
		t.Errorf("expected kitty from file, got %q", cfg.Emulator())
	}
	if cfg.AutoStart() {
		t.Error("expected auto_start false from file")
	}
	if cfg.Terminal.Claude.PromptTemplate != "work on {task_name}" {
		t.Errorf("unexpected template: %q", cfg.Terminal.Claude.PromptTemplate)
	}

	// WORKTREE_TERMINAL overrides the file.
	t.Setenv("WORKTREE_TERMINAL", "WezTerm.exe")
	cfg, err = LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Emulator() != "wezterm" {
		t.Errorf("expected normalized wezterm, got %q", cfg.Emulator())
	}
}

func TestLoadConfig_EmulatorNormalization(t *testing.T) {
	cfg := &Config{}
	cfg.Terminal.Emulator = "/usr/local/bin/Alacritty.exe"
	if cfg.Emulator() != "alacritty" {
		t.Errorf("expected alacritty, got %q", cfg.Emulator())
	}
}

func TestBuildClaudeCommand(t *testing.T) {
	cmd := BuildClaudeCommand("do {task_name} on {branch} at {worktree_path}; tasks: {tasks_path}",
		"/repo/.trees/feat-x", "m-task", "feat/x", "../../sessions/tasks")

	if !strings.HasPrefix(cmd, "claude --dangerously-skip-permissions ") {
		t.Errorf("unexpected command prefix: %q", cmd)
	}
	for _, want := range []string{"m-task", "feat/x", "/repo/.trees/feat-x", "../../sessions/tasks"} {
		if !strings.Contains(cmd, want) {
			t.Errorf("expected %q in command: %q", want, cmd)
		}
	}
}

func TestBuildClaudeCommand_EscapesQuotes(t *testing.T) {
	cmd := BuildClaudeCommand("it's {task_name}", "/wt", "t", "b", "tasks")
	if !strings.Contains(cmd, `it'\''s`) {
		t.Errorf("single quote not escaped for shell wrapper: %q", cmd)
	}
}

func TestBuildTerminalCommand_Known(t *testing.T) {
	cmd := BuildTerminalCommand("kitty", "/wt", "exec bash -l")
	want := "kitty --directory '/wt' bash -lc 'exec bash -l'"
	if cmd != want {
		t.Errorf("expected %q, got %q", want, cmd)
	}
}

func TestBuildTerminalCommand_Generic(t *testing.T) {
	cmd := BuildTerminalCommand("myterm", "/wt", "vim .")
	if !strings.HasPrefix(cmd, "myterm --working-directory") {
		t.Errorf("unexpected generic command: %q", cmd)
	}
}

func TestSetupSessionsBypass(t *testing.T) {
	wt := t.TempDir()
	statePath := filepath.Join(wt, "sessions", "sessions-state.json")
	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		t.Fatal(err)
	}
	initial := `{"mode": "discussion", "todos": {"active": ["stale"]}, "active_protocol": "x"}`
	if err := os.WriteFile(statePath, []byte(initial), 0644); err != nil {
		t.Fatal(err)
	}

	configured, err := SetupSessionsBypass(wt, "m-task")
	if err != nil {
		t.Fatalf("SetupSessionsBypass: %v", err)
	}
	if !configured {
		t.Fatal("expected state configured")
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatal(err)
	}
	var state map[string]interface{}
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatal(err)
	}

	if state["mode"] != "implementation" {
		t.Errorf("expected implementation mode, got %v", state["mode"])
	}
	flags := state["flags"].(map[string]interface{})
	if flags["bypass_mode"] != true {
		t.Error("expected bypass_mode true")
	}
	todos := state["todos"].(map[string]interface{})
	if active := todos["active"].([]interface{}); len(active) != 0 {
		t.Errorf("expected stale todos cleared, got %v", active)
	}
	current := state["current_task"].(map[string]interface{})
	if current["name"] != "m-task" || current["file"] != "m-task.md" || current["status"] != "in-progress" {
		t.Errorf("unexpected current_task: %v", current)
	}
	if state["active_protocol"] != nil {
		t.Errorf("expected active_protocol cleared, got %v", state["active_protocol"])
	}
}

func TestSetupSessionsBypass_NoStateFile(t *testing.T) {
	configured, err := SetupSessionsBypass(t.TempDir(), "m-task")
	if err != nil {
		t.Fatalf("missing state file should not error: %v", err)
	}
	if configured {
		t.Error("expected configured false for missing file")
	}
}

func TestSpawn_DryRun(t *testing.T) {
	root := t.TempDir()
	wt := filepath.Join(root, ".trees", "feat-x")
	if err := os.MkdirAll(wt, 0755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WORKTREE_TERMINAL", "")
	t.Setenv("TERMINAL", "")
	result, err := Spawn(context.Background(), Request{
		WorktreePath: wt,
		ProjectRoot:  root,
		Command:      "vim .",
		DryRun:       true,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !result.DryRun || !result.Success {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.InnerCommand != "vim ." {
		t.Errorf("unexpected inner command: %q", result.InnerCommand)
	}
	if !strings.Contains(result.TerminalCommand, "alacritty") {
		t.Errorf("unexpected terminal command: %q", result.TerminalCommand)
	}
}

func TestSpawn_MissingWorktree(t *testing.T) {
	_, err := Spawn(context.Background(), Request{
		WorktreePath: filepath.Join(t.TempDir(), "nope"),
		DryRun:       true,
	})
	if err == nil {
		t.Error("expected error for missing worktree")
	}
}
