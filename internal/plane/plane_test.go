package plane

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStoreWithPath(filepath.Join(t.TempDir(), "plane-sync.json"))
	s.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}
	return s
}

func sampleData() *SyncData {
	return &SyncData{
		Project: &syncProject{
			ID:         "proj-uuid",
			Identifier: "CCPRISM",
			Name:       "Prism",
			Workspace:  "acme",
		},
		States: []syncState{
			{ID: "st-backlog", Name: "Backlog", Group: "backlog"},
			{ID: "st-todo", Name: "Todo", Group: "unstarted"},
			{ID: "st-prog", Name: "In Progress", Group: "started"},
			{ID: "st-review", Name: "In Review", Group: "started"},
			{ID: "st-done", Name: "Done", Group: "completed"},
		},
		Issues: []syncIssue{
			{ID: "i-25", Name: "Wire cache", SequenceID: 25, State: idOrValue{"st-prog"}, UpdatedAt: "2026-03-10T00:00:00Z"},
			{ID: "i-27", Name: "Fix parser", SequenceID: 27, State: idOrValue{"st-todo"}, UpdatedAt: "2026-03-12T00:00:00Z"},
		},
	}
}

func TestSync(t *testing.T) {
	s := testStore(t)

	result, err := s.Sync(sampleData())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.IssuesCount != 2 || result.StatesCount != 5 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if len(result.New) != 2 || result.New[0] != "CCPRISM-25" {
		t.Errorf("unexpected new issues: %v", result.New)
	}

	cache, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cache.Project.Identifier != "CCPRISM" {
		t.Errorf("unexpected project: %+v", cache.Project)
	}
	issue := cache.Issues["CCPRISM-25"]
	if issue == nil || issue.State != "In Progress" || issue.StateID != "st-prog" {
		t.Errorf("unexpected issue: %+v", issue)
	}
	if issue.Priority != "none" {
		t.Errorf("expected default priority none, got %q", issue.Priority)
	}
	if !strings.HasSuffix(cache.LastSync, "Z") {
		t.Errorf("lastSync should be UTC with Z suffix: %q", cache.LastSync)
	}
}

func TestSync_StateKeys(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}
	cache, _ := s.Load()

	// "In Progress" arrives first in the started group and owns the
	// in_progress key; "In Review" gets its own key.
	if cache.States["in_progress"] != "st-prog" {
		t.Errorf("in_progress -> %q", cache.States["in_progress"])
	}
	if cache.States["in_review"] != "st-review" {
		t.Errorf("in_review -> %q", cache.States["in_review"])
	}
	if cache.States["pending"] != "st-todo" {
		t.Errorf("pending -> %q", cache.States["pending"])
	}
}

func TestSync_UpdatedDetection(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}

	data := sampleData()
	data.Issues[0].UpdatedAt = "2026-03-13T00:00:00Z"
	result, err := s.Sync(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.New) != 0 {
		t.Errorf("expected no new issues, got %v", result.New)
	}
	if len(result.Updated) != 1 || result.Updated[0] != "CCPRISM-25" {
		t.Errorf("expected CCPRISM-25 updated, got %v", result.Updated)
	}
}

func TestIdOrValue(t *testing.T) {
	var v idOrValue
	if err := json.Unmarshal([]byte(`"bare-id"`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Value != "bare-id" {
		t.Errorf("got %q", v.Value)
	}
	if err := json.Unmarshal([]byte(`{"id": "obj-id", "name": "x"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Value != "obj-id" {
		t.Errorf("got %q", v.Value)
	}
}

func TestTouch(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}

	before, _ := s.Load()
	s.now = func() time.Time {
		return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	}
	result, err := s.Touch()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Touched || result.IssuesCount != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	after, _ := s.Load()
	if after.LastSync == before.LastSync {
		t.Error("expected lastSync to advance")
	}
	if len(after.Issues) != len(before.Issues) {
		t.Error("touch must not change issues")
	}
}

func TestAddIssue(t *testing.T) {
	s := testStore(t)

	result, err := s.AddIssue("CCPRISM-30", Issue{ID: "i-30", Name: "New thing", State: "Todo"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != "added" {
		t.Errorf("expected added, got %q", result.Action)
	}

	result, err = s.AddIssue("CCPRISM-30", Issue{ID: "i-30", Name: "New thing", State: "Done"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != "updated" {
		t.Errorf("expected updated, got %q", result.Action)
	}

	cache, _ := s.Load()
	if cache.Issues["CCPRISM-30"].UpdatedAt == "" {
		t.Error("expected updated_at stamped")
	}
}

func TestAddIssue_RequiresIDAndName(t *testing.T) {
	s := testStore(t)
	if _, err := s.AddIssue("CCPRISM-30", Issue{Name: "no id"}); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := s.AddIssue("CCPRISM-30", Issue{ID: "i-30"}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestReads(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}
	if err := s.Link("CCPRISM-25", "m-wire-cache.md"); err != nil {
		t.Fatal(err)
	}

	summary, err := s.Summary()
	if err != nil {
		t.Fatal(err)
	}
	if summary.Project != "CCPRISM" || summary.IssuesCount != 2 || summary.LinkedCount != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	issues, err := s.Issues("in progress")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 {
		t.Errorf("state filter should match case-insensitively: %v", issues)
	}

	detail, err := s.Issue("CCPRISM-25")
	if err != nil {
		t.Fatal(err)
	}
	if detail.LinkedTask != "m-wire-cache.md" {
		t.Errorf("unexpected linked task: %q", detail.LinkedTask)
	}

	if _, err := s.Issue("CCPRISM-99"); err == nil {
		t.Error("expected error for unknown issue")
	}

	unlinked, err := s.Unlinked()
	if err != nil {
		t.Fatal(err)
	}
	if len(unlinked) != 1 {
		t.Errorf("expected one unlinked issue: %v", unlinked)
	}
	if _, ok := unlinked["CCPRISM-27"]; !ok {
		t.Errorf("expected CCPRISM-27 unlinked: %v", unlinked)
	}
}

func TestReads_NoCache(t *testing.T) {
	s := NewStoreWithPath(filepath.Join(t.TempDir(), "plane-sync.json"))
	if _, err := s.Summary(); err != ErrNoCache {
		t.Errorf("expected ErrNoCache, got %v", err)
	}
}

func TestLink_Uniqueness(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}

	if err := s.Link("CCPRISM-25", "m-a.md"); err != nil {
		t.Fatal(err)
	}
	// Same pair again is fine.
	if err := s.Link("CCPRISM-25", "m-a.md"); err != nil {
		t.Errorf("re-linking same pair should succeed: %v", err)
	}
	// Issue to a second task is rejected, naming the existing task.
	err := s.Link("CCPRISM-25", "m-b.md")
	if err == nil || !strings.Contains(err.Error(), "m-a.md") {
		t.Errorf("expected conflict naming m-a.md, got %v", err)
	}
	// Task to a second issue is rejected, naming the existing issue.
	err = s.Link("CCPRISM-27", "m-a.md")
	if err == nil || !strings.Contains(err.Error(), "CCPRISM-25") {
		t.Errorf("expected conflict naming CCPRISM-25, got %v", err)
	}
	// Unknown issue is rejected.
	if err := s.Link("CCPRISM-99", "m-c.md"); err == nil {
		t.Error("expected error for unknown issue")
	}
}

func TestUnlink(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}
	if err := s.Link("CCPRISM-25", "m-a.md"); err != nil {
		t.Fatal(err)
	}

	taskFile, err := s.Unlink("CCPRISM-25")
	if err != nil {
		t.Fatal(err)
	}
	if taskFile != "m-a.md" {
		t.Errorf("expected m-a.md, got %q", taskFile)
	}
	if _, err := s.Unlink("CCPRISM-25"); err == nil {
		t.Error("expected error unlinking twice")
	}
}

func writeTaskFile(t *testing.T, dir, name, frontmatter string) {
	t.Helper()
	content := "---\n" + frontmatter + "---\n\n## Problem\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}
	if err := s.Link("CCPRISM-25", "m-wire-cache.md"); err != nil {
		t.Fatal(err)
	}

	tasksDir := t.TempDir()
	writeTaskFile(t, tasksDir, "m-wire-cache.md", "name: m-wire-cache\nstatus: pending\n")
	writeTaskFile(t, tasksDir, "m-orphan.md", "name: m-orphan\nstatus: pending\n")
	writeTaskFile(t, tasksDir, "m-claims.md", "name: m-claims\nstatus: pending\nplane_issue: CCPRISM-27\n")

	d, err := s.Discover(tasksDir, true)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := d.UnlinkedIssues["CCPRISM-27"]; !ok || len(d.UnlinkedIssues) != 1 {
		t.Errorf("unexpected unlinked issues: %v", d.UnlinkedIssues)
	}

	if len(d.UnlinkedTasks) != 2 {
		t.Fatalf("expected two unlinked tasks, got %v", d.UnlinkedTasks)
	}
	var claims *UnlinkedTask
	for i := range d.UnlinkedTasks {
		if d.UnlinkedTasks[i].File == "m-claims.md" {
			claims = &d.UnlinkedTasks[i]
		}
	}
	if claims == nil || claims.ClaimsIssue != "CCPRISM-27" {
		t.Errorf("expected m-claims.md to claim CCPRISM-27: %v", d.UnlinkedTasks)
	}

	// m-wire-cache is linked to CCPRISM-25 (In Progress) but its task
	// status is pending, which maps to Todo.
	if len(d.StatusMismatches) != 1 {
		t.Fatalf("expected one mismatch, got %v", d.StatusMismatches)
	}
	m := d.StatusMismatches[0]
	if m.Issue != "CCPRISM-25" || m.ExpectedState != "Todo" || m.PlaneState != "In Progress" {
		t.Errorf("unexpected mismatch: %+v", m)
	}

	if d.Summary.TotalIssues != 2 || d.Summary.TotalLinked != 1 {
		t.Errorf("unexpected summary: %+v", d.Summary)
	}
}

func TestDiscover_MissingTasksDir(t *testing.T) {
	s := testStore(t)
	if _, err := s.Sync(sampleData()); err != nil {
		t.Fatal(err)
	}
	d, err := s.Discover(filepath.Join(t.TempDir(), "nope"), false)
	if err != nil {
		t.Fatalf("missing tasks dir should not error: %v", err)
	}
	if len(d.UnlinkedTasks) != 0 {
		t.Errorf("expected no unlinked tasks: %v", d.UnlinkedTasks)
	}
}
