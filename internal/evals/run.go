package evals

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTimeout bounds one agent run.
const DefaultRunTimeout = 5 * time.Minute

// DefaultLogDir receives run logs when the request names no directory.
const DefaultLogDir = ".claude/eval-logs"

// RunRequest describes an agent run to execute under test.
type RunRequest struct {
	Prompt  string
	Agent   []string // command and args; default is claude -p <prompt>
	LogDir  string
	Timeout time.Duration
	Env     []string // extra environment entries
}

// RunResult reports the executed run and where its log landed.
type RunResult struct {
	RunID    string `json:"run_id"`
	LogFile  string `json:"log_file"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Events   int    `json:"events"`
}

// Run spawns the agent with TEST_MODE=1 and a fresh TEST_RUN_ID so its
// hooks write tool-call events to <logdir>/<run-id>.jsonl, waits for it
// to finish, and reports the log location.
func Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Prompt == "" && len(req.Agent) == 0 {
		return nil, fmt.Errorf("prompt or agent command is required")
	}
	if req.LogDir == "" {
		req.LogDir = DefaultLogDir
	}
	if err := os.MkdirAll(req.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runID := uuid.NewString()
	logFile := filepath.Join(req.LogDir, runID+".jsonl")

	argv := req.Agent
	if len(argv) == 0 {
		argv = []string{"claude", "-p", req.Prompt}
	} else if req.Prompt != "" {
		argv = append(append([]string{}, argv...), req.Prompt)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"TEST_MODE=1",
		"TEST_RUN_ID="+runID,
		"TEST_LOG_DIR="+req.LogDir,
	)
	cmd.Env = append(cmd.Env, req.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := &RunResult{
		RunID:   runID,
		LogFile: logFile,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("agent run timed out after %s", timeout)
		}
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, fmt.Errorf("running agent: %w", runErr)
		}
	}

	if events, err := LoadEvents(logFile); err == nil {
		result.Events = len(events)
	}
	return result, nil
}
