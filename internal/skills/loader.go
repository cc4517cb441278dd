package skills

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSkills discovers and parses skill files from both user-level
// (~/.claude/skills/) and project-level (.claude/skills/) directories.
// Project-level skills take precedence over user-level skills with the
// same name.
func LoadSkills(cwd string) []Skill {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var skills []Skill
	seen := make(map[string]bool)

	// Project-level skills first (higher priority).
	projectDir := filepath.Join(cwd, ".claude", "skills")
	for _, s := range loadSkillsFromDir(projectDir, "project") {
		skills = append(skills, s)
		seen[s.Name] = true
	}

	// User-level skills (lower priority, skipped on name conflict).
	userDir := filepath.Join(home, ".claude", "skills")
	for _, s := range loadSkillsFromDir(userDir, "user") {
		if !seen[s.Name] {
			skills = append(skills, s)
			seen[s.Name] = true
		}
	}

	return skills
}

// loadSkillsFromDir reads all .md files from a directory and parses them as skills.
func loadSkillsFromDir(dir, scope string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var skills []Skill
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		skill := parseSkill(string(data), path)
		skill.Scope = scope
		if skill.Name == "" {
			// Use filename without extension as fallback name.
			skill.Name = strings.TrimSuffix(entry.Name(), ".md")
		}
		skills = append(skills, skill)
	}
	return skills
}

// parseSkill parses a markdown file with optional YAML frontmatter.
// Frontmatter is delimited by "---" lines at the top of the file; a
// file without one, or with a malformed header, is all body.
func parseSkill(content, filePath string) Skill {
	s := Skill{FilePath: filePath}

	if !strings.HasPrefix(content, "---") {
		s.Content = strings.TrimSpace(content)
		return s
	}

	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		s.Content = strings.TrimSpace(content)
		return s
	}

	var fm skillFrontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		s.Content = strings.TrimSpace(content)
		return s
	}

	s.Name = fm.Name
	s.Description = fm.Description
	s.Trigger = fm.Trigger
	s.AllowedTools = fm.AllowedTools
	s.Content = strings.TrimSpace(parts[2])
	return s
}
