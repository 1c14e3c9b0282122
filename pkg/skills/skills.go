// Package skills loads reusable agent skills from SKILL.md bundles.
//
// A skill is a directory containing a SKILL.md file: YAML frontmatter
// (name, description, allowed-tools) followed by a markdown body with
// instructions. Applying a skill to a run narrows the tool allow-list
// and extends the agent's system prompt with the instructions.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/loomlab/loom/pkg/agent"
	"github.com/loomlab/loom/pkg/runtime"
	"gopkg.in/yaml.v3"
)

// Skill is one parsed skill bundle.
type Skill struct {
	Name         string
	Description  string
	Metadata     map[string]string
	AllowedTools []string
	Instructions string
	Path         string
	Dir          string
}

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// LoadDir scans root for skill subdirectories containing SKILL.md.
// Directories without one are skipped.
func LoadDir(root string) ([]Skill, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name(), "SKILL.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		skill, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, skill)
	}
	return out, nil
}

// LoadFile parses a single SKILL.md file.
func LoadFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return Skill{}, fmt.Errorf("%s: %w", path, err)
	}
	var parsed frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
		return Skill{}, fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}

	skill := Skill{
		Name:         parsed.Name,
		Description:  parsed.Description,
		Metadata:     parsed.Metadata,
		AllowedTools: dedupe(parsed.AllowedTools),
		Instructions: strings.TrimSpace(body),
		Path:         path,
		Dir:          filepath.Dir(path),
	}
	if err := skill.validate(); err != nil {
		return Skill{}, fmt.Errorf("%s: %w", path, err)
	}
	return skill, nil
}

// AgentOptions returns options that configure an agent for this skill.
func (s Skill) AgentOptions() []agent.Option {
	opts := []agent.Option{agent.WithDescription(s.Description)}
	if s.Instructions != "" {
		opts = append(opts, agent.WithSystemPrompt(s.Instructions))
	}
	if len(s.AllowedTools) > 0 {
		opts = append(opts, agent.WithCapabilities(agent.CapabilityToolUse))
	}
	return opts
}

// RuntimeOptions returns execution options scoped to the skill's
// allowed tools. A skill without an allow-list leaves tools unrestricted.
func (s Skill) RuntimeOptions() runtime.Options {
	return runtime.Options{AllowedTools: s.AllowedTools}
}

type frontmatter struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Metadata     map[string]string `yaml:"metadata"`
	AllowedTools []string          `yaml:"allowed-tools"`
}

func splitFrontmatter(content string) (string, string, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", errors.New("missing frontmatter")
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return "", "", errors.New("invalid frontmatter")
	}
	return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

func (s Skill) validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", namePattern.String())
	}
	if dirName := filepath.Base(s.Dir); dirName != name {
		return fmt.Errorf("name must match directory name (%s)", dirName)
	}

	desc := strings.TrimSpace(s.Description)
	if desc == "" {
		return errors.New("description is required")
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	return nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
