package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, ".claude", "skills")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + name + "\ndescription: A test skill\n---\n# Body\n"
	if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSkills_ListSubcommandWord(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", filepath.Join(dir, "home"))
	writeSkill(t, dir, "research")

	// "list" followed by flags must still parse the flags.
	pretty := captureStdout(t, func() {
		if code := runSkills([]string{"list", "-pretty"}); code != 0 {
			t.Errorf("unexpected exit code %d", code)
		}
	})
	if strings.HasPrefix(strings.TrimSpace(pretty), "{") {
		t.Errorf("-pretty after list was ignored; got JSON:\n%s", pretty)
	}
	if !strings.Contains(pretty, "research") {
		t.Errorf("pretty output missing skill name:\n%s", pretty)
	}

	plain := captureStdout(t, func() {
		if code := runSkills([]string{"list"}); code != 0 {
			t.Errorf("unexpected exit code %d", code)
		}
	})
	if !strings.HasPrefix(strings.TrimSpace(plain), "{") {
		t.Errorf("expected JSON without -pretty:\n%s", plain)
	}
	if !strings.Contains(plain, `"research"`) {
		t.Errorf("JSON output missing skill name:\n%s", plain)
	}
}
