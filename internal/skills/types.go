// Package skills implements skill discovery and parsing for the
// plugin-style markdown skills that live alongside a project.
//
// Skills are markdown files with YAML frontmatter located in:
//   - ~/.claude/skills/ (user-level, all projects)
//   - .claude/skills/  (project-level)
package skills

// Skill represents a loaded skill definition.
type Skill struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Trigger      string   `json:"trigger,omitempty"` // slash command trigger, e.g. "/commit"
	AllowedTools []string `json:"allowed_tools,omitempty"`
	Content      string   `json:"-"` // markdown body (instructions/prompt)
	FilePath     string   `json:"file"`
	Scope        string   `json:"scope"` // "project" or "user"
}

// skillFrontmatter is the YAML header of a skill file.
type skillFrontmatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Trigger      string   `yaml:"trigger"`
	AllowedTools []string `yaml:"allowed-tools"`
}
