// Package breakdown generates subtask files from a parent task and
// renders dependency views over a tasks directory.
package breakdown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/claudekit/claudekit/internal/task"
)

// phaseTemplate is the skeleton for a generated phase file.
const phaseTemplate = `---
name: {{ .Name }}
branch: {{ .Branch }}
status: pending
parent: {{ .Parent }}
created: {{ .Created }}
---

# {{ .Title }}

## Problem/Goal

Phase {{ .Number }} of {{ .ParentName }}: {{ .Phase }}.

## Success Criteria

- [ ] {{ .Phase }} implemented
- [ ] Tests pass
`

type phaseData struct {
	Name       string
	Branch     string
	Parent     string
	Created    string
	Title      string
	Number     int
	ParentName string
	Phase      string
}

// Slug folds a phase name to a filename-safe slug: lowercased, runs of
// non-alphanumerics collapsed to single dashes.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Phase describes one generated subtask file.
type Phase struct {
	File   string `json:"file"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

// Generate writes one subtask file per phase next to the parent task.
// Files are named <parent-stem>-phase-N-<slug>.md and inherit the
// parent's branch. Existing files are not overwritten.
func Generate(parentPath string, phases []string) ([]Phase, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("no phases given")
	}

	parent, err := task.Load(parentPath)
	if err != nil {
		return nil, fmt.Errorf("loading parent task: %w", err)
	}

	dir := filepath.Dir(parentPath)
	stem := strings.TrimSuffix(filepath.Base(parentPath), ".md")
	tmpl := template.Must(template.New("phase").Parse(phaseTemplate))
	created := time.Now().Format("2006-01-02")

	var result []Phase
	for i, phase := range phases {
		slug := Slug(phase)
		if slug == "" {
			return nil, fmt.Errorf("phase %d has no usable name: %q", i+1, phase)
		}
		name := fmt.Sprintf("%s-phase-%d-%s", stem, i+1, slug)
		path := filepath.Join(dir, name+".md")
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("phase file already exists: %s", path)
		}

		data := phaseData{
			Name:       name,
			Branch:     parent.Frontmatter.Branch,
			Parent:     parent.Filename,
			Created:    created,
			Title:      phase,
			Number:     i + 1,
			ParentName: parent.Name(),
			Phase:      phase,
		}
		var buf strings.Builder
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("rendering phase %d: %w", i+1, err)
		}
		if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
			return nil, fmt.Errorf("writing phase file: %w", err)
		}
		result = append(result, Phase{File: name + ".md", Name: phase, Number: i + 1})
	}
	return result, nil
}
