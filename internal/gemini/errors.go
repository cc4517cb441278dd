package gemini

import "strings"

// Diagnostic labels surfaced to callers in the JSON failure shape. These are
// heuristic classifications of subprocess failures, not a structured taxonomy;
// the agent reading them decides what to do next.
const (
	DiagTimeout      = "timeout"
	DiagRateLimit    = "rate_limit"
	DiagAuth         = "auth"
	DiagStaleSession = "stale_session"
	DiagUnknown      = "unknown"
)

// Error is a gemini subprocess failure with a diagnostic label.
type Error struct {
	Message    string
	Diagnostic string
}

func (e *Error) Error() string { return e.Message }

// DiagnosticOf extracts the diagnostic label from an error, defaulting to
// unknown for errors that did not come from this package.
func DiagnosticOf(err error) string {
	if err == nil {
		return ""
	}
	if ge, ok := err.(*Error); ok && ge.Diagnostic != "" {
		return ge.Diagnostic
	}
	return DiagUnknown
}

// classify maps an error message to a diagnostic label by substring matching.
func classify(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout"):
		return DiagTimeout
	case strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "resource_exhausted"):
		return DiagRateLimit
	case strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "api key") ||
		strings.Contains(lower, "credential") ||
		strings.Contains(lower, "authentication"):
		return DiagAuth
	case strings.Contains(lower, "session") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "invalid")):
		return DiagStaleSession
	default:
		return DiagUnknown
	}
}
