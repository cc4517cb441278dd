package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/memory"
)

const memoryUsage = `Usage:
  claudekit memory status
  claudekit memory add -user <id> [-topic t] <text>
  claudekit memory search -user <id> [-limit n] <query>
  claudekit memory get -user <id>
  claudekit memory delete -id <memory-id>
  claudekit memory store-response -user <id> [-topic t] [-file f.json] (stdin by default)
`

func runMemory(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, memoryUsage)
		return 2
	}

	backend, err := memory.Open()
	if err != nil {
		return cliutil.Failf("opening memory backend: %v", err)
	}
	defer backend.Close()

	switch args[0] {
	case "status":
		status, err := backend.Status(ctx)
		if err != nil {
			return cliutil.Failf("%v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, status)
		if !status.Ready {
			return 1
		}
		return 0

	case "add":
		fs := flag.NewFlagSet("memory add", flag.ExitOnError)
		user := fs.String("user", "", "User ID to file the memory under")
		topic := fs.String("topic", "", "Topic tag")
		fs.Parse(args[1:])
		if *user == "" {
			return cliutil.Failf("-user is required")
		}
		text := strings.Join(fs.Args(), " ")
		if text == "" {
			piped, err := cliutil.ReadPipedStdin()
			if err != nil {
				return cliutil.Failf("%v", err)
			}
			text = strings.TrimSpace(piped)
		}
		if text == "" {
			return cliutil.Failf("no memory text given")
		}

		item, err := backend.Add(ctx, *user, text, memory.StampMetadata(nil, *topic))
		if err != nil {
			return cliutil.Failf("adding memory: %v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success": true,
			"memory":  item,
		})
		return 0

	case "search":
		fs := flag.NewFlagSet("memory search", flag.ExitOnError)
		user := fs.String("user", "", "User ID to search within")
		limit := fs.Int("limit", 5, "Maximum results")
		fs.Parse(args[1:])
		if *user == "" {
			return cliutil.Failf("-user is required")
		}
		query := strings.Join(fs.Args(), " ")

		items, err := backend.Search(ctx, *user, query, *limit)
		if err != nil {
			return cliutil.Failf("searching memories: %v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success": true,
			"count":   len(items),
			"results": items,
		})
		return 0

	case "get":
		fs := flag.NewFlagSet("memory get", flag.ExitOnError)
		user := fs.String("user", "", "User ID to list")
		fs.Parse(args[1:])
		if *user == "" {
			return cliutil.Failf("-user is required")
		}

		items, err := backend.GetAll(ctx, *user)
		if err != nil {
			return cliutil.Failf("listing memories: %v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success":  true,
			"count":    len(items),
			"memories": items,
		})
		return 0

	case "delete":
		fs := flag.NewFlagSet("memory delete", flag.ExitOnError)
		id := fs.String("id", "", "Memory ID to delete")
		fs.Parse(args[1:])
		if *id == "" {
			return cliutil.Failf("-id is required")
		}

		if err := backend.Delete(ctx, *id); err != nil {
			return cliutil.Failf("deleting memory: %v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success": true,
			"deleted": *id,
		})
		return 0

	case "store-response":
		fs := flag.NewFlagSet("memory store-response", flag.ExitOnError)
		user := fs.String("user", "", "User ID to file the memory under")
		topic := fs.String("topic", "", "Topic tag")
		file := fs.String("file", "", "Read the response JSON from this file instead of stdin")
		fs.Parse(args[1:])
		if *user == "" {
			return cliutil.Failf("-user is required")
		}
		var data string
		if *file != "" {
			raw, err := os.ReadFile(*file)
			if err != nil {
				return cliutil.Failf("reading response file: %v", err)
			}
			data = string(raw)
		} else {
			piped, err := cliutil.ReadPipedStdin()
			if err != nil {
				return cliutil.Failf("%v", err)
			}
			data = piped
		}
		if strings.TrimSpace(data) == "" {
			return cliutil.Failf("no response JSON given: pipe it to stdin or pass -file")
		}

		item, err := memory.StoreResponse(ctx, backend, *user, *topic, []byte(data))
		if err != nil {
			return cliutil.Failf("storing response: %v", err)
		}
		_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
			"success": true,
			"memory":  item,
		})
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown memory subcommand %q\n\n%s", args[0], memoryUsage)
		return 2
	}
}
