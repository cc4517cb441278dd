package breakdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/claudekit/claudekit/internal/task"
)

// node is one task in the dependency graph. Deps are filenames the
// task depends on, from the parent field plus the depends list.
type node struct {
	file   string
	name   string
	status string
	deps   []string
}

// Graph is the dependency graph over a tasks directory.
type Graph struct {
	nodes []*node
	index map[string]*node
}

// BuildGraph loads the tasks in dir and collects their dependency
// edges. A dep naming a file outside the directory is kept as-is so
// the views can surface it.
func BuildGraph(dir string) (*Graph, error) {
	tasks, _, err := task.ListDir(dir)
	if err != nil {
		return nil, err
	}

	g := &Graph{index: make(map[string]*node)}
	for _, t := range tasks {
		n := &node{file: t.Filename, name: t.Name(), status: t.Status()}
		if p := t.Frontmatter.Parent; p != "" {
			n.deps = append(n.deps, normalizeDep(p))
		}
		for _, d := range t.Frontmatter.Depends {
			d = normalizeDep(d)
			if d != "" && !contains(n.deps, d) {
				n.deps = append(n.deps, d)
			}
		}
		g.nodes = append(g.nodes, n)
		g.index[n.file] = n
	}
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].file < g.nodes[j].file })
	return g, nil
}

func normalizeDep(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return ""
	}
	if !strings.HasSuffix(d, ".md") {
		d += ".md"
	}
	return d
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// CheckCycles returns an error naming the first dependency cycle
// found, or nil when the graph is acyclic.
func (g *Graph) CheckCycles() error {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string

	var visit func(file string) error
	visit = func(file string) error {
		color[file] = grey
		stack = append(stack, file)
		n := g.index[file]
		if n != nil {
			for _, dep := range n.deps {
				switch color[dep] {
				case grey:
					// Close the loop for the error message.
					start := 0
					for i, f := range stack {
						if f == dep {
							start = i
							break
						}
					}
					cycle := append(append([]string{}, stack[start:]...), dep)
					return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
				case white:
					if _, ok := g.index[dep]; ok {
						if err := visit(dep); err != nil {
							return err
						}
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[file] = black
		return nil
	}

	for _, n := range g.nodes {
		if color[n.file] == white {
			if err := visit(n.file); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarkdownTable renders the graph as a Markdown table: one row per
// task with its status and dependencies.
func (g *Graph) MarkdownTable() (string, error) {
	if err := g.CheckCycles(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("| Task | Status | Depends On |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, n := range g.nodes {
		deps := "-"
		if len(n.deps) > 0 {
			deps = strings.Join(n.deps, ", ")
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", n.file, n.status, deps)
	}
	return b.String(), nil
}

// Mermaid renders the graph as a Mermaid flowchart, edges pointing
// from dependency to dependent.
func (g *Graph) Mermaid() (string, error) {
	if err := g.CheckCycles(); err != nil {
		return "", err
	}

	ids := make(map[string]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[n.file] = fmt.Sprintf("T%d", i)
	}

	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "    %s[%q]\n", ids[n.file], strings.TrimSuffix(n.file, ".md"))
	}
	for _, n := range g.nodes {
		for _, dep := range n.deps {
			depID, ok := ids[dep]
			if !ok {
				// External dep: give it a node of its own.
				depID = fmt.Sprintf("X%d", len(ids))
				ids[dep] = depID
				fmt.Fprintf(&b, "    %s[%q]\n", depID, strings.TrimSuffix(dep, ".md"))
			}
			fmt.Fprintf(&b, "    %s --> %s\n", depID, ids[n.file])
		}
	}
	return b.String(), nil
}
