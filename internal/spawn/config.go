// Package spawn opens terminal emulators inside worktrees, optionally
// auto-starting a Claude agent on a task.
package spawn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the project-level spawn configuration file name.
const ConfigFile = ".worktree-orchestrator.yaml"

// DefaultPromptTemplate is the startup prompt handed to the agent when a
// task is given and no template is configured. Placeholders: {worktree_path},
// {branch}, {tasks_path}, {task_name}.
const DefaultPromptTemplate = `You are in a worktree at {worktree_path} on branch {branch}.
Task files are located at {tasks_path}.
start^ {task_name}

AUTONOMOUS MODE ACTIVE:
- bypass_mode is enabled in sessions-state.json
- After creating your implementation plan, IMMEDIATELY approve it yourself and begin execution
- Do NOT wait for human confirmation - you have full authority
- Work through your entire todo list without pausing for approval
- Commit your work when complete`

// Config is the terminal-spawning configuration.
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
}

// TerminalConfig selects the emulator and agent-startup behavior.
type TerminalConfig struct {
	Emulator string       `yaml:"emulator"`
	Claude   ClaudeConfig `yaml:"claude"`
}

// ClaudeConfig controls agent auto-start inside the spawned terminal.
type ClaudeConfig struct {
	AutoStart      *bool  `yaml:"auto_start"`
	PromptTemplate string `yaml:"prompt_template"`
}

// LoadConfig reads the project config file and applies environment
// overrides: WORKTREE_TERMINAL wins over the file, TERMINAL fills a gap.
// Everything is optional; the zero config spawns alacritty with the
// default prompt.
func LoadConfig(projectRoot string) (*Config, error) {
	cfg := &Config{}

	path := filepath.Join(projectRoot, ConfigFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ConfigFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", ConfigFile, err)
	}

	if env := os.Getenv("WORKTREE_TERMINAL"); env != "" {
		cfg.Terminal.Emulator = env
	} else if env := os.Getenv("TERMINAL"); env != "" && cfg.Terminal.Emulator == "" {
		cfg.Terminal.Emulator = env
	}
	if cfg.Terminal.Emulator == "" {
		cfg.Terminal.Emulator = "alacritty"
	}
	if cfg.Terminal.Claude.PromptTemplate == "" {
		cfg.Terminal.Claude.PromptTemplate = DefaultPromptTemplate
	}

	return cfg, nil
}

// Emulator normalizes the configured emulator to a bare program name:
// lowercased, .exe stripped, path components discarded.
func (c *Config) Emulator() string {
	emulator := strings.ToLower(strings.TrimSpace(c.Terminal.Emulator))
	emulator = strings.TrimSuffix(emulator, ".exe")
	return filepath.Base(emulator)
}

// AutoStart reports whether the agent should start automatically (the
// default when unset).
func (c *Config) AutoStart() bool {
	if c.Terminal.Claude.AutoStart == nil {
		return true
	}
	return *c.Terminal.Claude.AutoStart
}
