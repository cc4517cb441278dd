package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/plane"
	"github.com/claudekit/claudekit/internal/task"
)

const planeUsage = `Usage:
  claudekit plane sync [-data file.json]         (reads JSON from stdin by default)
  claudekit plane read <summary|issues|issue|linked|unlinked|states> [args]
  claudekit plane add-issue -key <KEY> -id <id> -name <name> [-state s] [-priority p]
  claudekit plane link -issue <KEY> -task <file.md>
  claudekit plane unlink -issue <KEY>
  claudekit plane discover [-dir sessions/tasks] [-check-status]
`

func runPlane(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, planeUsage)
		return 2
	}

	cwd, code := workingDir()
	if code != 0 {
		return code
	}
	store := plane.NewStore(cwd)

	switch args[0] {
	case "sync":
		return runPlaneSync(store, args[1:])
	case "read":
		return runPlaneRead(store, args[1:])
	case "add-issue":
		return runPlaneAddIssue(store, args[1:])
	case "link":
		return runPlaneLink(store, args[1:])
	case "unlink":
		return runPlaneUnlink(store, args[1:])
	case "discover":
		return runPlaneDiscover(store, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown plane subcommand %q\n\n%s", args[0], planeUsage)
		return 2
	}
}

func runPlaneSync(store *plane.Store, args []string) int {
	fs := flag.NewFlagSet("plane sync", flag.ExitOnError)
	dataFile := fs.String("data", "", "Read API data from this file instead of stdin")
	touch := fs.Bool("touch", false, "Refresh the sync timestamp without new data")
	fs.Parse(args)

	if *touch {
		result, err := store.Touch()
		if err != nil {
			return cliutil.Failf("%v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, result)
		return 0
	}

	var raw []byte
	var err error
	if *dataFile != "" {
		raw, err = os.ReadFile(*dataFile)
		if err != nil {
			return cliutil.Failf("reading data file: %v", err)
		}
	} else {
		piped, err := cliutil.ReadPipedStdin()
		if err != nil {
			return cliutil.Failf("%v", err)
		}
		raw = []byte(piped)
	}
	if len(raw) == 0 {
		return cliutil.Failf("no sync data: pipe API JSON to stdin or pass -data")
	}

	var data plane.SyncData
	if err := json.Unmarshal(raw, &data); err != nil {
		return cliutil.Failf("parsing sync data: %v", err)
	}

	result, err := store.Sync(&data)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, result)
	return 0
}

func runPlaneRead(store *plane.Store, args []string) int {
	if len(args) == 0 {
		return cliutil.Failf("plane read expects a view: summary, issues, issue, linked, unlinked, or states")
	}

	var out interface{}
	var err error
	switch args[0] {
	case "summary":
		out, err = store.Summary()
	case "issues":
		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		out, err = store.Issues(filter)
	case "issue":
		if len(args) < 2 {
			return cliutil.Failf("plane read issue expects an issue key")
		}
		out, err = store.Issue(args[1])
	case "linked":
		out, err = store.Linked()
	case "unlinked":
		out, err = store.Unlinked()
	case "states":
		out, err = store.States()
	default:
		return cliutil.Failf("unknown read view %q", args[0])
	}
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, out)
	return 0
}

func runPlaneAddIssue(store *plane.Store, args []string) int {
	fs := flag.NewFlagSet("plane add-issue", flag.ExitOnError)
	key := fs.String("key", "", "Issue key, e.g. PROJ-42")
	id := fs.String("id", "", "Issue ID")
	name := fs.String("name", "", "Issue name")
	state := fs.String("state", "Backlog", "State name")
	priority := fs.String("priority", "none", "Priority")
	fs.Parse(args)
	if *key == "" {
		return cliutil.Failf("-key is required")
	}

	result, err := store.AddIssue(*key, plane.Issue{
		ID:       *id,
		Name:     *name,
		State:    *state,
		Priority: *priority,
	})
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, result)
	return 0
}

func runPlaneLink(store *plane.Store, args []string) int {
	fs := flag.NewFlagSet("plane link", flag.ExitOnError)
	issue := fs.String("issue", "", "Issue key")
	taskFile := fs.String("task", "", "Task filename")
	fs.Parse(args)
	if *issue == "" || *taskFile == "" {
		return cliutil.Failf("-issue and -task are required")
	}

	if err := store.Link(*issue, *taskFile); err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success": true,
		"issue":   *issue,
		"task":    *taskFile,
	})
	return 0
}

func runPlaneUnlink(store *plane.Store, args []string) int {
	fs := flag.NewFlagSet("plane unlink", flag.ExitOnError)
	issue := fs.String("issue", "", "Issue key")
	fs.Parse(args)
	if *issue == "" {
		return cliutil.Failf("-issue is required")
	}

	previous, err := store.Unlink(*issue)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success": true,
		"issue":   *issue,
		"was":     previous,
	})
	return 0
}

func runPlaneDiscover(store *plane.Store, args []string) int {
	fs := flag.NewFlagSet("plane discover", flag.ExitOnError)
	dir := fs.String("dir", task.DefaultTasksDir, "Tasks directory")
	checkStatus := fs.Bool("check-status", false, "Compare task status against Plane state")
	fs.Parse(args)

	discovery, err := store.Discover(*dir, *checkStatus)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, discovery)
	return 0
}
