package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/claudekit/claudekit/internal/cache"
	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/gemini"
	"github.com/claudekit/claudekit/internal/sessions"
	"github.com/claudekit/claudekit/internal/ui"
)

const offloadUsage = `Usage:
  claudekit offload query [flags] <prompt>
  claudekit offload status
  claudekit offload prune [-max-age days]
  claudekit offload session <list|create|continue|delete|pick> [flags]
`

func runOffload(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, offloadUsage)
		return 2
	}
	switch args[0] {
	case "query":
		return runOffloadQuery(ctx, args[1:])
	case "status":
		return runOffloadStatus(ctx)
	case "prune":
		return runOffloadPrune(args[1:])
	case "session":
		return runOffloadSession(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown offload subcommand %q\n\n%s", args[0], offloadUsage)
		return 2
	}
}

// queryOutput is the JSON shape for query results, cached or fresh.
type queryOutput struct {
	Success  bool               `json:"success"`
	Response string             `json:"response"`
	Summary  string             `json:"summary,omitempty"`
	Cached   bool               `json:"cached"`
	CacheKey string             `json:"cache_key,omitempty"`
	Model    string             `json:"model,omitempty"`
	Tokens   *gemini.TokenUsage `json:"tokens,omitempty"`
}

func runOffloadQuery(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("offload query", flag.ExitOnError)
	model := fs.String("model", "", "Model to query")
	dirs := fs.String("dirs", "", "Comma-separated directories to include")
	tools := fs.String("tools", "", "Comma-separated allowed tools")
	yolo := fs.Bool("yolo", false, "Auto-approve tool use")
	timeoutSec := fs.Int("timeout", 0, "Query timeout in seconds")
	noCache := fs.Bool("no-cache", false, "Bypass the response cache")
	refresh := fs.Bool("refresh", false, "Re-query and overwrite any cached response")
	ignore := fs.String("ignore", "", "Comma-separated ignore globs for source collection")
	fs.Parse(args)

	piped, err := cliutil.ReadPipedStdin()
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	prompt := combinedPrompt(strings.Join(fs.Args(), " "), strings.TrimSpace(piped))
	if prompt == "" {
		return cliutil.Failf("no prompt given: pass it as arguments or pipe it to stdin")
	}

	cwd, code := workingDir()
	if code != 0 {
		return code
	}

	includeDirs := splitList(*dirs)
	sources, err := cache.CollectSources(includeDirs, splitList(*ignore))
	if err != nil {
		cliutil.Warnf("collecting sources: %v", err)
	}

	store, err := cache.NewStore(cwd)
	if err != nil {
		return cliutil.Failf("opening cache: %v", err)
	}
	key := cache.Key(prompt, *model, sources)

	if !*noCache && !*refresh {
		if entry, ok := store.Lookup(key, sources); ok {
			response, err := entry.FullResponse()
			if err != nil {
				cliutil.Warnf("reading cached response: %v", err)
			} else {
				_ = cliutil.EmitJSON(os.Stdout, queryOutput{
					Success:  true,
					Response: response,
					Summary:  entry.Summary,
					Cached:   true,
					CacheKey: key,
					Model:    entry.Meta.Model,
					Tokens:   entry.Meta.Tokens,
				})
				return 0
			}
		}
	}

	runner, err := gemini.NewRunner(cwd)
	if err != nil {
		return cliutil.Fail(err.Error(), gemini.DiagnosticOf(err))
	}

	result, err := runner.RunQuery(ctx, gemini.Request{
		Prompt:       prompt,
		Model:        *model,
		IncludeDirs:  includeDirs,
		AllowedTools: splitList(*tools),
		Yolo:         *yolo,
		Timeout:      time.Duration(*timeoutSec) * time.Second,
	})
	if err != nil {
		return cliutil.Fail(err.Error(), gemini.DiagnosticOf(err))
	}

	out := queryOutput{
		Success:  true,
		Response: result.Response,
		Model:    result.Model,
		Tokens:   result.Tokens,
	}
	if !*noCache {
		entry, err := store.Put(key, prompt, *model, result.Response, sources, result.Tokens)
		if err != nil {
			cliutil.Warnf("caching response: %v", err)
		} else {
			out.CacheKey = key
			out.Summary = entry.Summary
		}
	}
	_ = cliutil.EmitJSON(os.Stdout, out)
	return 0
}

func runOffloadStatus(ctx context.Context) int {
	cwd, code := workingDir()
	if code != 0 {
		return code
	}

	type statusOutput struct {
		Success       bool   `json:"success"`
		Binary        string `json:"binary,omitempty"`
		Version       string `json:"version,omitempty"`
		Authenticated bool   `json:"authenticated"`
		AuthMethod    string `json:"auth_method,omitempty"`
		CacheDir      string `json:"cache_dir,omitempty"`
		CacheEntries  int    `json:"cache_entries"`
		CacheBytes    int64  `json:"cache_bytes"`
		Error         string `json:"error,omitempty"`
	}

	out := statusOutput{Success: true}
	runner, err := gemini.NewRunner(cwd)
	if err != nil {
		out.Success = false
		out.Error = err.Error()
	} else {
		out.Binary = runner.Binary()
		out.Version = runner.Version(ctx)
		out.Authenticated, out.AuthMethod = gemini.CheckAuth()
	}

	if store, err := cache.NewStore(cwd); err == nil {
		out.CacheDir = store.Dir()
		out.CacheEntries, out.CacheBytes = store.Stats()
	}

	_ = cliutil.EmitJSON(os.Stdout, out)
	if !out.Success {
		return 1
	}
	return 0
}

func runOffloadPrune(args []string) int {
	fs := flag.NewFlagSet("offload prune", flag.ExitOnError)
	maxAgeDays := fs.Int("max-age", 30, "Remove entries older than this many days")
	fs.Parse(args)

	cwd, code := workingDir()
	if code != 0 {
		return code
	}
	store, err := cache.NewStore(cwd)
	if err != nil {
		return cliutil.Failf("opening cache: %v", err)
	}

	removed, err := store.Prune(time.Duration(*maxAgeDays) * 24 * time.Hour)
	if err != nil {
		return cliutil.Failf("pruning cache: %v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
	return 0
}

func newSessionManager(cwd string) (*sessions.Manager, error) {
	store, err := sessions.NewStore(cwd)
	if err != nil {
		return nil, err
	}
	runner, err := gemini.NewRunner(cwd)
	if err != nil {
		return nil, err
	}
	return sessions.NewManager(store, runner, cwd), nil
}

func failSession(err error) int {
	var stale *sessions.StaleError
	if errors.As(err, &stale) {
		return cliutil.Fail(err.Error(), gemini.DiagStaleSession)
	}
	return cliutil.Fail(err.Error(), gemini.DiagnosticOf(err))
}

func runOffloadSession(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, offloadUsage)
		return 2
	}

	cwd, code := workingDir()
	if code != 0 {
		return code
	}
	mgr, err := newSessionManager(cwd)
	if err != nil {
		return cliutil.Failf("%v", err)
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("offload session list", flag.ExitOnError)
		pretty := fs.Bool("pretty", false, "Styled terminal output")
		fs.Parse(args[1:])

		entries, lastUsed, err := mgr.List(ctx)
		if err != nil {
			return failSession(err)
		}
		if *pretty {
			fmt.Println(ui.RenderSessionList(entries, lastUsed))
			return 0
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success":  true,
			"sessions": entries,
			"lastUsed": lastUsed,
		})
		return 0

	case "create":
		fs := flag.NewFlagSet("offload session create", flag.ExitOnError)
		name := fs.String("name", "", "Name for the new session")
		timeoutSec := fs.Int("timeout", 0, "Query timeout in seconds")
		fs.Parse(args[1:])
		if *name == "" {
			return cliutil.Failf("-name is required")
		}
		prompt := strings.Join(fs.Args(), " ")
		if prompt == "" {
			return cliutil.Failf("a starting prompt is required")
		}

		result, mapping, err := mgr.Create(ctx, *name, prompt, time.Duration(*timeoutSec)*time.Second)
		if err != nil {
			return failSession(err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success":   true,
			"name":      *name,
			"sessionId": mapping.SessionID,
			"response":  result.Response,
		})
		return 0

	case "continue", "resume":
		fs := flag.NewFlagSet("offload session continue", flag.ExitOnError)
		name := fs.String("name", "", "Session name (latest session when omitted)")
		timeoutSec := fs.Int("timeout", 0, "Query timeout in seconds")
		fs.Parse(args[1:])
		prompt := strings.Join(fs.Args(), " ")
		if prompt == "" {
			return cliutil.Failf("a prompt is required")
		}

		result, err := mgr.Continue(ctx, *name, prompt, time.Duration(*timeoutSec)*time.Second)
		if err != nil {
			return failSession(err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success":  true,
			"name":     *name,
			"response": result.Response,
		})
		return 0

	case "delete":
		fs := flag.NewFlagSet("offload session delete", flag.ExitOnError)
		name := fs.String("name", "", "Session name to delete")
		fs.Parse(args[1:])
		if *name == "" {
			return cliutil.Failf("-name is required")
		}

		removed, err := mgr.Delete(ctx, *name)
		if err != nil {
			return failSession(err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success": true,
			"deleted": removed,
		})
		return 0

	case "pick":
		entries, _, err := mgr.List(ctx)
		if err != nil {
			return failSession(err)
		}
		chosen, err := ui.PickSession(entries)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		if chosen.Name != "" {
			fmt.Println(chosen.Name)
		} else {
			fmt.Println(chosen.Index)
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown session subcommand %q\n\n%s", args[0], offloadUsage)
		return 2
	}
}

// combinedPrompt merges a prompt argument with piped stdin. Piped content
// becomes leading context for the task so that the cache key covers both.
func combinedPrompt(task, piped string) string {
	switch {
	case task == "":
		return piped
	case piped == "":
		return task
	default:
		return fmt.Sprintf("Context:\n%s\n\nTask: %s", piped, task)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
