package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSkill_WithFrontmatter(t *testing.T) {
	content := `---
name: commit
description: Create a git commit
trigger: /commit
allowed-tools:
  - Bash
  - Read
---

# Commit Skill

Instructions for creating commits...`

	skill := parseSkill(content, "test.md")

	if skill.Name != "commit" {
		t.Errorf("expected name 'commit', got %q", skill.Name)
	}
	if skill.Description != "Create a git commit" {
		t.Errorf("expected description 'Create a git commit', got %q", skill.Description)
	}
	if skill.Trigger != "/commit" {
		t.Errorf("expected trigger '/commit', got %q", skill.Trigger)
	}
	if len(skill.AllowedTools) != 2 || skill.AllowedTools[0] != "Bash" {
		t.Errorf("unexpected allowed tools: %v", skill.AllowedTools)
	}
	if skill.Content != "# Commit Skill\n\nInstructions for creating commits..." {
		t.Errorf("unexpected content: %q", skill.Content)
	}
}

func TestParseSkill_NoFrontmatter(t *testing.T) {
	content := "Just some markdown content"
	skill := parseSkill(content, "test.md")

	if skill.Name != "" {
		t.Errorf("expected empty name, got %q", skill.Name)
	}
	if skill.Content != "Just some markdown content" {
		t.Errorf("unexpected content: %q", skill.Content)
	}
}

func TestParseSkill_EmptyFrontmatter(t *testing.T) {
	content := `---
---
Body content here`

	skill := parseSkill(content, "test.md")
	if skill.Content != "Body content here" {
		t.Errorf("unexpected content: %q", skill.Content)
	}
}

func TestParseSkill_MalformedFrontmatter(t *testing.T) {
	content := `---
name: [unclosed
---
Body`

	skill := parseSkill(content, "test.md")
	if skill.Name != "" {
		t.Errorf("expected empty name for malformed header, got %q", skill.Name)
	}
	if skill.Content == "" {
		t.Error("expected content preserved")
	}
}

func TestLoadSkillsFromDir(t *testing.T) {
	dir := t.TempDir()

	skillContent := `---
name: test-skill
description: A test skill
trigger: /test
---
Test instructions`

	if err := os.WriteFile(filepath.Join(dir, "test.md"), []byte(skillContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Write a non-md file that should be ignored.
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a skill"), 0644); err != nil {
		t.Fatal(err)
	}

	skills := loadSkillsFromDir(dir, "project")
	if len(skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(skills))
	}

	if skills[0].Name != "test-skill" {
		t.Errorf("expected name 'test-skill', got %q", skills[0].Name)
	}
	if skills[0].Trigger != "/test" {
		t.Errorf("expected trigger '/test', got %q", skills[0].Trigger)
	}
	if skills[0].Scope != "project" {
		t.Errorf("expected project scope, got %q", skills[0].Scope)
	}
}

func TestLoadSkillsFromDir_FallbackName(t *testing.T) {
	dir := t.TempDir()

	// A markdown file without a name in frontmatter.
	if err := os.WriteFile(filepath.Join(dir, "review.md"), []byte("Review instructions"), 0644); err != nil {
		t.Fatal(err)
	}

	skills := loadSkillsFromDir(dir, "user")
	if len(skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(skills))
	}

	if skills[0].Name != "review" {
		t.Errorf("expected fallback name 'review', got %q", skills[0].Name)
	}
}

func TestLoadSkillsFromDir_NonexistentDir(t *testing.T) {
	skills := loadSkillsFromDir("/nonexistent/path", "project")
	if skills != nil {
		t.Errorf("expected nil skills for nonexistent dir, got %v", skills)
	}
}

func TestLoadSkills_ProjectOverridesUser(t *testing.T) {
	cwd := t.TempDir()
	projDir := filepath.Join(cwd, ".claude", "skills")
	if err := os.MkdirAll(projDir, 0755); err != nil {
		t.Fatal(err)
	}

	projSkill := `---
name: shared-skill
description: Project version
---
Project content`
	if err := os.WriteFile(filepath.Join(projDir, "shared.md"), []byte(projSkill), 0644); err != nil {
		t.Fatal(err)
	}

	skills := LoadSkills(cwd)

	found := false
	for _, s := range skills {
		if s.Name == "shared-skill" {
			found = true
			if s.Description != "Project version" {
				t.Errorf("expected 'Project version', got %q", s.Description)
			}
			if s.Scope != "project" {
				t.Errorf("expected project scope, got %q", s.Scope)
			}
		}
	}
	if !found {
		t.Error("expected to find 'shared-skill'")
	}
}
