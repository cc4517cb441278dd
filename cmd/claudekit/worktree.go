package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/spawn"
	"github.com/claudekit/claudekit/internal/task"
	"github.com/claudekit/claudekit/internal/ui"
	"github.com/claudekit/claudekit/internal/worktree"
)

const worktreeUsage = `Usage:
  claudekit worktree status [-dir sessions/tasks] [-pretty]
  claudekit worktree check-cleanup -branch <name> [-base main]
  claudekit worktree spawn -path <worktree> [-task name | -command cmd] [-dry-run] [-no-bypass]
`

func runWorktree(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, worktreeUsage)
		return 2
	}
	switch args[0] {
	case "status":
		return runWorktreeStatus(ctx, args[1:])
	case "check-cleanup":
		return runWorktreeCheckCleanup(ctx, args[1:])
	case "spawn":
		return runWorktreeSpawn(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown worktree subcommand %q\n\n%s", args[0], worktreeUsage)
		return 2
	}
}

func runWorktreeStatus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worktree status", flag.ExitOnError)
	dir := fs.String("dir", task.DefaultTasksDir, "Tasks directory")
	pretty := fs.Bool("pretty", false, "Styled terminal output")
	fs.Parse(args)

	cwd, code := workingDir()
	if code != 0 {
		return code
	}

	overview, err := worktree.Status(ctx, cwd, *dir)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	if *pretty {
		fmt.Println(ui.RenderWorktreeStatus(overview))
		return 0
	}
	_ = cliutil.EmitJSON(os.Stdout, overview)
	return 0
}

func runWorktreeCheckCleanup(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worktree check-cleanup", flag.ExitOnError)
	branch := fs.String("branch", "", "Branch to check")
	base := fs.String("base", "main", "Base branch for merge detection")
	dir := fs.String("dir", task.DefaultTasksDir, "Tasks directory")
	fs.Parse(args)
	if *branch == "" {
		return cliutil.Failf("-branch is required")
	}

	cwd, code := workingDir()
	if code != 0 {
		return code
	}

	report, err := worktree.CheckCleanup(ctx, cwd, *dir, *branch, *base)
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, report)
	return 0
}

func runWorktreeSpawn(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("worktree spawn", flag.ExitOnError)
	path := fs.String("path", "", "Worktree directory to open")
	taskName := fs.String("task", "", "Auto-start the agent on this task")
	command := fs.String("command", "", "Custom command to run instead of the agent")
	dryRun := fs.Bool("dry-run", false, "Print the command without launching")
	noBypass := fs.Bool("no-bypass", false, "Skip the sessions-state rewrite")
	fs.Parse(args)
	if *path == "" {
		return cliutil.Failf("-path is required")
	}

	cwd, code := workingDir()
	if code != 0 {
		return code
	}

	result, err := spawn.Spawn(ctx, spawn.Request{
		WorktreePath: *path,
		ProjectRoot:  cwd,
		TaskName:     *taskName,
		Command:      *command,
		DryRun:       *dryRun,
		NoBypass:     *noBypass,
	})
	if err != nil {
		return cliutil.Failf("%v", err)
	}
	_ = cliutil.EmitJSON(os.Stdout, result)
	return 0
}
