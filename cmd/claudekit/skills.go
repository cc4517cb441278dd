package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/claudekit/claudekit/internal/cliutil"
	"github.com/claudekit/claudekit/internal/skills"
	"github.com/claudekit/claudekit/internal/ui"
)

func runSkills(args []string) int {
	if len(args) > 0 && args[0] == "list" {
		args = args[1:]
	}
	fs := flag.NewFlagSet("skills", flag.ExitOnError)
	pretty := fs.Bool("pretty", false, "Styled terminal output")
	body := fs.Bool("body", false, "Include skill bodies in pretty output")
	fs.Parse(args)

	cwd, code := workingDir()
	if code != 0 {
		return code
	}
	list := skills.LoadSkills(cwd)

	if *pretty {
		width := 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		fmt.Println(ui.RenderSkills(list, *body, width))
		return 0
	}

	_ = cliutil.EmitJSON(os.Stdout, map[string]interface{}{
		"success": true,
		"count":   len(list),
		"skills":  list,
	})
	return 0
}
