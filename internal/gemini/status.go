package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Auth method labels reported by CheckAuth.
const (
	AuthAPIKey      = "api_key"
	AuthVertexAI    = "vertex_ai"
	AuthGoogleLogin = "google_login"
)

// Version returns the CLI's reported version string.
func (r *Runner) Version(ctx context.Context) string {
	cmdCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.binary, "--version")
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "error: " + err.Error()
	}

	version := strings.TrimSpace(stdout.String())
	if version == "" {
		version = strings.TrimSpace(stderr.String())
	}
	return version
}

// CheckAuth determines whether the CLI has usable credentials and which
// method provides them. It only inspects configuration; it never issues a
// billable test query.
func CheckAuth() (bool, string) {
	if os.Getenv("GEMINI_API_KEY") != "" {
		return true, AuthAPIKey
	}
	if os.Getenv("GOOGLE_API_KEY") != "" && os.Getenv("GOOGLE_GENAI_USE_VERTEXAI") != "" {
		return true, AuthVertexAI
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return false, ""
	}
	return checkSettingsAuth(filepath.Join(home, ".gemini", "settings.json"))
}

// checkSettingsAuth looks for an oauth/auth block in a gemini settings file.
func checkSettingsAuth(path string) (bool, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, ""
	}
	var settings map[string]json.RawMessage
	if err := json.Unmarshal(data, &settings); err != nil {
		return false, ""
	}
	if _, ok := settings["auth"]; ok {
		return true, AuthGoogleLogin
	}
	if _, ok := settings["oauth"]; ok {
		return true, AuthGoogleLogin
	}
	return false, ""
}
