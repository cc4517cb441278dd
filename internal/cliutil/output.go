// Package cliutil holds small helpers shared by all claudekit subcommands:
// the JSON output convention, the failure shape, and stdin detection.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Failure is the uniform error shape every subcommand emits on stdout when
// something goes wrong. Diagnostic is a short machine-readable label
// (timeout, rate_limit, auth, stale_session, unknown) the caller can branch on.
type Failure struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// EmitJSON writes v to w as indented JSON followed by a newline.
func EmitJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Fail emits a Failure on stdout and returns exit code 1.
func Fail(msg, diagnostic string) int {
	_ = EmitJSON(os.Stdout, Failure{Error: msg, Diagnostic: diagnostic})
	return 1
}

// Failf is Fail with formatting and no diagnostic label.
func Failf(format string, args ...interface{}) int {
	return Fail(fmt.Sprintf(format, args...), "")
}

// StdinIsPiped reports whether stdin carries piped data rather than a terminal.
func StdinIsPiped() bool {
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadPipedStdin returns stdin's content when it is piped, or "" when stdin
// is a terminal.
func ReadPipedStdin() (string, error) {
	if !StdinIsPiped() {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// Warnf prints a diagnostic to stderr without polluting the JSON on stdout.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
