// Package ui holds the interactive and styled-output pieces of the
// CLI: the session picker and the --pretty renderers.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/claudekit/claudekit/internal/sessions"
	"github.com/claudekit/claudekit/internal/skills"
	"github.com/claudekit/claudekit/internal/worktree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Markdown renders markdown to styled ANSI output, falling back to the
// raw text when the renderer cannot be built.
func Markdown(md string, width int) string {
	if width < 40 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// RenderSkills formats a skill inventory for the terminal. With body
// set, each skill's markdown content is rendered below its header.
func RenderSkills(list []skills.Skill, body bool, width int) string {
	if len(list) == 0 {
		return labelStyle.Render("no skills found")
	}

	var b strings.Builder
	for i, s := range list {
		if i > 0 {
			b.WriteString("\n")
		}
		header := titleStyle.Render(s.Name)
		if s.Trigger != "" {
			header += " " + labelStyle.Render(s.Trigger)
		}
		header += " " + labelStyle.Render("["+s.Scope+"]")
		b.WriteString(header + "\n")
		if s.Description != "" {
			b.WriteString("  " + valueStyle.Render(s.Description) + "\n")
		}
		if len(s.AllowedTools) > 0 {
			b.WriteString("  " + labelStyle.Render("tools: "+strings.Join(s.AllowedTools, ", ")) + "\n")
		}
		if body && s.Content != "" {
			b.WriteString(Markdown(s.Content, width) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderWorktreeStatus formats a worktree overview for the terminal.
func RenderWorktreeStatus(o *worktree.Overview) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Worktrees") + "\n")

	if len(o.Worktrees) == 0 {
		b.WriteString(labelStyle.Render("  none") + "\n")
	}
	for _, wt := range o.Worktrees {
		line := "  " + valueStyle.Render(wt.Branch)
		if wt.IsCurrent {
			line += " " + okStyle.Render("(current)")
		}
		line += " " + labelStyle.Render(wt.Path)
		b.WriteString(line + "\n")
		for _, t := range wt.Tasks {
			b.WriteString("    " + labelStyle.Render(t.File) + " " + statusStyle(t.Status).Render(t.Status) + "\n")
		}
	}

	if len(o.BranchesWithoutWorktree) > 0 {
		b.WriteString(warnStyle.Render("Branches with tasks but no worktree") + "\n")
		for _, m := range o.BranchesWithoutWorktree {
			b.WriteString("  " + valueStyle.Render(m.Branch) + " " + labelStyle.Render("-> "+m.SuggestedPath) + "\n")
			for _, t := range m.Tasks {
				b.WriteString("    " + labelStyle.Render(t.File) + " " + statusStyle(t.Status).Render(t.Status) + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return okStyle
	case "blocked":
		return errStyle
	case "in-progress", "in_progress":
		return warnStyle
	default:
		return labelStyle
	}
}

// RenderSessionList formats the session inventory for the terminal.
func RenderSessionList(entries []sessions.ListEntry, lastUsed *sessions.LastUsed) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sessions") + "\n")
	if len(entries) == 0 {
		b.WriteString(labelStyle.Render("  none") + "\n")
	}
	for _, entry := range entries {
		line := fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("[%d]", entry.Index)), valueStyle.Render(entry.Description))
		if entry.Name != "" {
			line += " " + okStyle.Render("("+entry.Name+")")
		}
		b.WriteString(line + "\n")
	}
	if lastUsed != nil && lastUsed.Name != "" {
		b.WriteString(labelStyle.Render("last used: "+lastUsed.Name) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
