// Package main is the entry point for the claudekit CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

var version = "dev"

const usage = `claudekit: offload, memory, task, and worktree tooling for agent workflows

Usage:
  claudekit <command> [subcommand] [flags]

Commands:
  offload    query an external model with response caching and named sessions
  memory     persistent memory across sessions (hosted mem0 or local store)
  task       task file parsing, listing, archiving, and breakdown generation
  worktree   git worktree status, cleanup checks, and terminal spawning
  plane      local Plane issue cache: sync, read, link, discover
  evals      agent behavior harness: run agents and assert on tool-call logs
  skills     list discovered skill files
  version    print the claudekit version

Run "claudekit <command>" without arguments for subcommand help.
`

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancels in-flight subprocesses and API calls.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "offload":
		return runOffload(ctx, args[1:])
	case "memory":
		return runMemory(ctx, args[1:])
	case "task":
		return runTask(args[1:])
	case "worktree":
		return runWorktree(ctx, args[1:])
	case "plane":
		return runPlane(args[1:])
	case "evals":
		return runEvals(ctx, args[1:])
	case "skills":
		return runSkills(args[1:])
	case "version", "--version":
		fmt.Printf("claudekit %s\n", version)
		return 0
	case "help", "-h", "--help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

func workingDir() (string, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		return "", 1
	}
	return cwd, 0
}
