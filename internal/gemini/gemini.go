// Package gemini wraps the external gemini CLI as a subprocess.
//
// Queries run non-interactively with `-o json` so the output can be parsed
// programmatically. The CLI's session list uses volatile positional indices,
// so callers that need stable session identity should go through the
// sessions package instead of holding indices themselves.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single query subprocess.
	DefaultTimeout = 90 * time.Second
	// MaxTimeout is the ceiling a caller-supplied timeout is clamped to.
	MaxTimeout = 300 * time.Second

	installHint = "gemini-cli not found. Install with: npm install -g @google/gemini-cli"
)

// Runner executes gemini CLI subprocesses from a working directory.
type Runner struct {
	binary  string
	workDir string
}

// NewRunner locates the gemini binary on PATH. The returned error carries
// an install hint when the binary is missing.
func NewRunner(workDir string) (*Runner, error) {
	path, err := exec.LookPath("gemini")
	if err != nil {
		return nil, &Error{Message: installHint, Diagnostic: DiagUnknown}
	}
	return &Runner{binary: path, workDir: workDir}, nil
}

// NewRunnerWithBinary creates a runner for a specific executable (for testing).
func NewRunnerWithBinary(binary, workDir string) *Runner {
	return &Runner{binary: binary, workDir: workDir}
}

// Binary returns the resolved gemini executable path.
func (r *Runner) Binary() string { return r.binary }

// Request describes a single gemini query.
type Request struct {
	Prompt       string
	Model        string
	IncludeDirs  []string
	AllowedTools []string
	Yolo         bool

	// Resume is "", "latest", or a positional session index.
	Resume string

	// Timeout of 0 means DefaultTimeout; values above MaxTimeout are clamped.
	Timeout time.Duration
}

// TokenUsage reports token counts when the CLI includes them.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Result is a parsed query response.
type Result struct {
	Response string      `json:"response"`
	Model    string      `json:"model,omitempty"`
	Tokens   *TokenUsage `json:"tokens,omitempty"`
}

// buildArgs assembles the CLI argument list for a request. The prompt is a
// positional argument; -p is deprecated upstream.
func buildArgs(req Request) []string {
	var args []string
	if req.Resume != "" {
		args = append(args, "--resume", req.Resume)
	}
	if req.Model != "" {
		args = append(args, "-m", req.Model)
	}
	for _, dir := range req.IncludeDirs {
		args = append(args, "--include-directories", strings.TrimSpace(dir))
	}
	for _, tool := range req.AllowedTools {
		args = append(args, "--allowed-tools", strings.TrimSpace(tool))
	}
	if req.Yolo {
		args = append(args, "--yolo")
	}
	args = append(args, "-o", "json")
	args = append(args, req.Prompt)
	return args
}

// RunQuery executes a query with a bounded timeout and parses the output.
func (r *Runner) RunQuery(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.binary, buildArgs(req)...)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if cmdCtx.Err() == context.DeadlineExceeded {
		return nil, &Error{
			Message:    fmt.Sprintf("query timed out after %s", timeout),
			Diagnostic: DiagTimeout,
		}
	}

	return parseOutput(stdout.String(), stderr.String(), runErr)
}

// cliJSON is the shape gemini emits with -o json. Different versions have
// used different field names for the response text.
type cliJSON struct {
	Response string `json:"response"`
	Text     string `json:"text"`
	Content  string `json:"content"`
	Model    string `json:"model"`
	Usage    *struct {
		PromptTokens     int `json:"promptTokens"`
		CompletionTokens int `json:"completionTokens"`
		TotalTokens      int `json:"totalTokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// parseOutput interprets a finished subprocess: JSON first, then plain text,
// then the error path.
func parseOutput(stdout, stderr string, runErr error) (*Result, error) {
	trimmed := strings.TrimSpace(stdout)

	if trimmed != "" {
		var data cliJSON
		if err := json.Unmarshal([]byte(trimmed), &data); err == nil {
			if data.Error != nil {
				msg := data.Error.Message
				if msg == "" {
					msg = "gemini reported an error"
				}
				return nil, &Error{Message: msg, Diagnostic: classify(msg)}
			}
			res := &Result{Model: data.Model}
			switch {
			case data.Response != "":
				res.Response = data.Response
			case data.Text != "":
				res.Response = data.Text
			default:
				res.Response = data.Content
			}
			if data.Usage != nil {
				res.Tokens = &TokenUsage{
					Prompt:     data.Usage.PromptTokens,
					Completion: data.Usage.CompletionTokens,
					Total:      data.Usage.TotalTokens,
				}
			}
			if res.Response != "" {
				return res, nil
			}
			// JSON parsed but carried no text; fall through to the error path.
		} else if runErr == nil {
			// Not JSON: treat stdout as the plain-text response.
			return &Result{Response: trimmed}, nil
		}
	}

	msg := strings.TrimSpace(stderr)
	if msg == "" {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			msg = "command failed with code " + strconv.Itoa(exitErr.ExitCode())
		} else if runErr != nil {
			msg = runErr.Error()
		} else {
			msg = "no response from gemini"
		}
	}
	return nil, &Error{Message: msg, Diagnostic: classify(msg)}
}
