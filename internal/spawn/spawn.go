package spawn

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/worktree"
)

// terminalPatterns maps emulator names to spawn command templates. The
// outer wrapper uses single quotes so double quotes inside the inner
// command survive.
var terminalPatterns = map[string]string{
	"alacritty":      "alacritty --working-directory '{dir}' -e bash -lc '{cmd}'",
	"kitty":          "kitty --directory '{dir}' bash -lc '{cmd}'",
	"wezterm":        "wezterm start --cwd '{dir}' -- bash -lc '{cmd}'",
	"gnome-terminal": "gnome-terminal --working-directory='{dir}' -- bash -lc '{cmd}'",
	"konsole":        "konsole --workdir '{dir}' -e bash -lc '{cmd}'",
}

// genericPattern is the fallback for unrecognized emulators.
const genericPattern = "{emulator} --working-directory '{dir}' -e bash -lc '{cmd}'"

// Request describes a terminal to spawn.
type Request struct {
	WorktreePath string
	ProjectRoot  string
	TaskName     string // auto-start the agent on this task
	Command      string // custom command instead of the agent
	DryRun       bool
	NoBypass     bool // skip the sessions-state rewrite even with a task
}

// Result reports what was (or would be) spawned.
type Result struct {
	Worktree        string `json:"worktree"`
	Emulator        string `json:"emulator"`
	InnerCommand    string `json:"inner_command"`
	TerminalCommand string `json:"terminal_command"`
	SessionsBypass  bool   `json:"sessions_bypass"`
	DryRun          bool   `json:"dry_run,omitempty"`
	Success         bool   `json:"success"`
}

// Spawn builds and launches the terminal command for a request.
func Spawn(ctx context.Context, req Request) (*Result, error) {
	wtPath, err := filepath.Abs(req.WorktreePath)
	if err != nil {
		return nil, fmt.Errorf("resolving worktree path: %w", err)
	}
	if _, err := os.Stat(wtPath); err != nil {
		return nil, fmt.Errorf("worktree path does not exist: %s", wtPath)
	}

	root := req.ProjectRoot
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		return nil, err
	}
	emulator := cfg.Emulator()

	var inner string
	switch {
	case req.Command != "":
		inner = req.Command
	case req.TaskName != "":
		branch := worktree.CurrentBranch(ctx, wtPath)
		if branch == "" {
			branch = "unknown"
		}
		inner = BuildClaudeCommand(cfg.Terminal.Claude.PromptTemplate, wtPath, req.TaskName, branch, tasksPath(root, wtPath))
	default:
		inner = "exec bash -l"
	}

	terminalCmd := BuildTerminalCommand(emulator, wtPath, inner)

	result := &Result{
		Worktree:        wtPath,
		Emulator:        emulator,
		InnerCommand:    inner,
		TerminalCommand: terminalCmd,
	}

	// Configure autonomous-mode bypass before the agent starts; this runs
	// outside the agent's own permission boundary on purpose.
	if req.TaskName != "" && !req.NoBypass && !req.DryRun {
		configured, err := SetupSessionsBypass(wtPath, req.TaskName)
		if err != nil {
			cliutil.Warnf("could not configure sessions state: %v", err)
		}
		result.SessionsBypass = configured
	}

	if req.DryRun {
		result.DryRun = true
		result.Success = true
		return result, nil
	}

	if err := launchDetached(terminalCmd); err != nil {
		return result, err
	}
	result.Success = true
	return result, nil
}

// BuildClaudeCommand substitutes the prompt template and wraps it in a
// claude invocation. Single quotes in the prompt are escaped for the outer
// bash -lc '...' wrapper.
func BuildClaudeCommand(template, worktreePath, taskName, branch, tasksPath string) string {
	prompt := strings.NewReplacer(
		"{worktree_path}", worktreePath,
		"{branch}", branch,
		"{tasks_path}", tasksPath,
		"{task_name}", taskName,
	).Replace(template)

	escaped := strings.ReplaceAll(prompt, "'", `'\''`)
	return `claude --dangerously-skip-permissions "` + escaped + `"`
}

// BuildTerminalCommand fills the emulator's spawn pattern.
func BuildTerminalCommand(emulator, dir, innerCommand string) string {
	pattern, ok := terminalPatterns[emulator]
	if !ok {
		cliutil.Warnf("unknown terminal %q, using generic pattern", emulator)
		pattern = strings.ReplaceAll(genericPattern, "{emulator}", emulator)
	}
	return strings.NewReplacer(
		"{dir}", dir,
		"{cmd}", innerCommand,
	).Replace(pattern)
}

// tasksPath returns the tasks directory relative to the worktree when
// possible, absolute otherwise.
func tasksPath(projectRoot, worktreePath string) string {
	abs := filepath.Join(projectRoot, "sessions", "tasks")
	rel, err := filepath.Rel(worktreePath, abs)
	if err != nil {
		return abs
	}
	return rel
}

// launchDetached starts the terminal command in its own session without
// waiting for it.
func launchDetached(command string) error {
	cmd := exec.Command("bash", "-c", command+" &")
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning terminal: %w", err)
	}
	return cmd.Process.Release()
}
