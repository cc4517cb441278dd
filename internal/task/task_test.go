package task

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTask = `---
name: implement-feature
branch: feature/pick_cli
status: in-progress
parent: m-big-epic
created: 2025-12-01
---

## Problem/Goal

Implement the thing.

## Success Criteria

- [x] Parser handles frontmatter
- [ ] Tests pass
- [ ] Docs updated

## Notes

- [ ] not a success criterion (wrong section)
`

func TestParse_Frontmatter(t *testing.T) {
	task, err := Parse(sampleTask)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fm := task.Frontmatter
	if fm.Name != "implement-feature" {
		t.Errorf("expected name 'implement-feature', got %q", fm.Name)
	}
	if fm.Branch != "feature/pick_cli" {
		t.Errorf("unexpected branch: %q", fm.Branch)
	}
	if fm.Status != "in-progress" {
		t.Errorf("unexpected status: %q", fm.Status)
	}
	if fm.Parent != "m-big-epic" {
		t.Errorf("unexpected parent: %q", fm.Parent)
	}
}

func TestParse_DerivedFields(t *testing.T) {
	task, err := Parse(sampleTask)
	if err != nil {
		t.Fatal(err)
	}
	if task.Folder() != "feature-pick-cli" {
		t.Errorf("expected folder 'feature-pick-cli', got %q", task.Folder())
	}
	if task.WorktreePath() != filepath.Join(".trees", "feature-pick-cli") {
		t.Errorf("unexpected worktree path: %q", task.WorktreePath())
	}
}

func TestParse_Checklist(t *testing.T) {
	task, err := Parse(sampleTask)
	if err != nil {
		t.Fatal(err)
	}
	if len(task.Checklist) != 3 {
		t.Fatalf("expected 3 checklist items, got %d: %+v", len(task.Checklist), task.Checklist)
	}
	done, total := task.ChecklistDone()
	if done != 1 || total != 3 {
		t.Errorf("expected 1/3 done, got %d/%d", done, total)
	}
	if !task.Checklist[0].Done || task.Checklist[0].Text != "Parser handles frontmatter" {
		t.Errorf("unexpected first item: %+v", task.Checklist[0])
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	task, err := Parse("Just a plain markdown file.\n")
	if err != nil {
		t.Fatalf("files without frontmatter should parse: %v", err)
	}
	if task.Frontmatter.Name != "" {
		t.Errorf("expected empty frontmatter, got %+v", task.Frontmatter)
	}
	if task.Body != "Just a plain markdown file." {
		t.Errorf("unexpected body: %q", task.Body)
	}
}

func TestParse_NestedYAML(t *testing.T) {
	// The depends list is real YAML that line-splitting parsers choke on.
	content := `---
name: child
depends:
  - m-parent-a
  - m-parent-b
---
Body`
	task, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(task.Frontmatter.Depends) != 2 || task.Frontmatter.Depends[1] != "m-parent-b" {
		t.Errorf("unexpected depends: %v", task.Frontmatter.Depends)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse("---\n: : :\n---\nbody"); err == nil {
		t.Error("expected error for malformed frontmatter")
	}
}

func TestTask_Fallbacks(t *testing.T) {
	task := &Task{Filename: "m-fix-bug.md"}
	if task.Name() != "m-fix-bug" {
		t.Errorf("expected filename fallback, got %q", task.Name())
	}
	if task.Status() != "unknown" {
		t.Errorf("expected 'unknown' status, got %q", task.Status())
	}
	if task.WorktreePath() != "" {
		t.Errorf("branchless task should have no worktree path, got %q", task.WorktreePath())
	}
}

func TestNormalizeBranch(t *testing.T) {
	tests := []struct{ in, want string }{
		{"feature/pick-cli", "feature-pick-cli"},
		{"fix_thing", "fix-thing"},
		{"a/b_c", "a-b-c"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := NormalizeBranch(tt.in); got != tt.want {
			t.Errorf("NormalizeBranch(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func writeTask(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "m-one.md", "---\nname: one\nbranch: feat/a\nstatus: pending\n---\n")
	writeTask(t, dir, "m-two.md", "---\nname: two\nbranch: feat/a\nstatus: completed\n---\n")
	writeTask(t, dir, "TASK-TEMPLATE.md", "---\nname: template\n---\n")
	writeTask(t, dir, "notes.txt", "not a task")
	if err := os.Mkdir(filepath.Join(dir, "done"), 0755); err != nil {
		t.Fatal(err)
	}

	tasks, skipped, err := ListDir(dir)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if len(skipped) != 0 {
		t.Errorf("expected nothing skipped, got %v", skipped)
	}
	if tasks[0].Filename != "m-one.md" {
		t.Errorf("expected sorted order, got %q first", tasks[0].Filename)
	}
}

func TestGroupByBranch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".trees", "feat-a"), 0755); err != nil {
		t.Fatal(err)
	}

	tasks := []*Task{
		{Filename: "a.md", Frontmatter: Frontmatter{Branch: "feat/a", Status: StatusPending}},
		{Filename: "b.md", Frontmatter: Frontmatter{Branch: "feat/a", Status: StatusCompleted}},
		{Filename: "c.md", Frontmatter: Frontmatter{Branch: "feat/b", Status: StatusBlocked}},
		{Filename: "d.md", Frontmatter: Frontmatter{}},
	}

	groups, unbranched := GroupByBranch(tasks, root)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(unbranched) != 1 {
		t.Errorf("expected 1 unbranched task, got %d", len(unbranched))
	}

	a := groups[0]
	if a.Branch != "feat/a" || !a.WorktreeExists {
		t.Errorf("unexpected group: %+v", a)
	}
	if a.Statuses[StatusPending] != 1 || a.Statuses[StatusCompleted] != 1 {
		t.Errorf("unexpected status counts: %v", a.Statuses)
	}

	b := groups[1]
	if b.WorktreeExists {
		t.Error("feat/b has no worktree; expected WorktreeExists false")
	}
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "m-done.md", "---\nname: done\nstatus: completed\n---\n")
	writeTask(t, dir, "m-open.md", "---\nname: open\nstatus: pending\n---\n")

	dst, err := Archive(dir, "m-done.md", false)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("archived file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "m-done.md")); !os.IsNotExist(err) {
		t.Error("source file should be gone")
	}

	if _, err := Archive(dir, "m-open.md", false); err == nil {
		t.Error("expected refusal to archive incomplete task")
	}
	if _, err := Archive(dir, "m-open.md", true); err != nil {
		t.Errorf("force archive failed: %v", err)
	}
}
