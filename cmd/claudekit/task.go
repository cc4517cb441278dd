package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/claudekit/claudekit/internal/breakdown"
	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/task"
)

const taskUsage = `Usage:
  claudekit task parse <file.md>
  claudekit task list [-dir sessions/tasks] [-by-branch]
  claudekit task archive [-force] <file.md>
  claudekit task breakdown <parent.md> <phase name> [phase name...]
  claudekit task matrix [-dir sessions/tasks] [-format table|mermaid]
`

func runTask(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, taskUsage)
		return 2
	}
	switch args[0] {
	case "parse":
		return runTaskParse(args[1:])
	case "list":
		return runTaskList(args[1:])
	case "archive":
		return runTaskArchive(args[1:])
	case "breakdown":
		return runTaskBreakdown(args[1:])
	case "matrix":
		return runTaskMatrix(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown task subcommand %q\n\n%s", args[0], taskUsage)
		return 2
	}
}

func runTaskParse(args []string) int {
	if len(args) != 1 {
		return cliutil.Failf("task parse expects exactly one file")
	}
	t, err := task.Load(args[0])
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	done, total := t.ChecklistDone()
	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success":        true,
		"file":           filepath.Base(args[0]),
		"name":           t.Name(),
		"status":         t.Status(),
		"branch":         t.Frontmatter.Branch,
		"worktree":       t.WorktreePath(),
		"checklist_done": done,
		"checklist":      total,
		"frontmatter":    t.Frontmatter,
	})
	return 0
}

func runTaskList(args []string) int {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	dir := fs.String("dir", task.DefaultTasksDir, "Tasks directory")
	byBranch := fs.Bool("by-branch", false, "Group tasks by their feature branch")
	fs.Parse(args)

	tasks, skipped, err := task.ListDir(*dir)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	for _, reason := range skipped {
		cliutil.Warnf("%s", reason)
	}

	if *byBranch {
		root, code := workingDir()
		if code != 0 {
			return code
		}
		groups, unbranched := task.GroupByBranch(tasks, root)
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success":    true,
			"groups":     groups,
			"unbranched": taskSummaries(unbranched),
		})
		return 0
	}

	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success": true,
		"count":   len(tasks),
		"tasks":   taskSummaries(tasks),
	})
	return 0
}

type taskSummary struct {
	File          string `json:"file"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	Branch        string `json:"branch,omitempty"`
	ChecklistDone int    `json:"checklist_done"`
	ChecklistAll  int    `json:"checklist"`
}

func taskSummaries(tasks []*task.Task) []taskSummary {
	out := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		done, total := t.ChecklistDone()
		out = append(out, taskSummary{
			File:          t.File,
			Name:          t.Name(),
			Status:        t.Status(),
			Branch:        t.Frontmatter.Branch,
			ChecklistDone: done,
			ChecklistAll:  total,
		})
	}
	return out
}

func runTaskArchive(args []string) int {
	fs := flag.NewFlagSet("task archive", flag.ExitOnError)
	force := fs.Bool("force", false, "Archive even when the task is not completed")
	dir := fs.String("dir", task.DefaultTasksDir, "Tasks directory")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return cliutil.Failf("task archive expects exactly one file")
	}

	dest, err := task.Archive(*dir, filepath.Base(fs.Arg(0)), *force)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success":  true,
		"archived": dest,
	})
	return 0
}

func runTaskBreakdown(args []string) int {
	fs := flag.NewFlagSet("task breakdown", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		return cliutil.Failf("task breakdown expects a parent file and at least one phase name")
	}

	phases, err := breakdown.Generate(fs.Arg(0), fs.Args()[1:])
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success": true,
		"parent":  filepath.Base(fs.Arg(0)),
		"phases":  phases,
	})
	return 0
}

func runTaskMatrix(args []string) int {
	fs := flag.NewFlagSet("task matrix", flag.ExitOnError)
	dir := fs.String("dir", task.DefaultTasksDir, "Tasks directory")
	format := fs.String("format", "table", "Output format: table or mermaid")
	fs.Parse(args)

	graph, err := breakdown.BuildGraph(*dir)
	if err != nil {
		return cliutil.Failf("%v", err)
	}

	var rendered string
	switch strings.ToLower(*format) {
	case "table":
		rendered, err = graph.MarkdownTable()
	case "mermaid":
		rendered, err = graph.Mermaid()
	default:
		return cliutil.Failf("unknown format %q: use table or mermaid", *format)
	}
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	fmt.Println(rendered)
	return 0
}
