// Package cases loads skill-routing test cases and builds the filtered case
// list a batch runs.
package cases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one routing scenario. It is treated as immutable once loaded.
type Case struct {
	ID            string `json:"case_id" yaml:"case_id"`
	Category      string `json:"category" yaml:"category"`
	Prompt        string `json:"prompt" yaml:"prompt"`
	ExpectedSkill string `json:"expected_skill" yaml:"expected_skill"`

	// RequiredSkills must each be observed at tier 1 unless EvidenceTiers
	// says otherwise.
	RequiredSkills []string `json:"required_skills,omitempty" yaml:"required_skills,omitempty"`
	// RequiredFiles must each be observed at tier 2 or better.
	RequiredFiles []string `json:"required_files,omitempty" yaml:"required_files,omitempty"`
	// RequiredAllEvidence and RequiredEvidence are the older flat lists.
	RequiredAllEvidence []string       `json:"required_all_evidence,omitempty" yaml:"required_all_evidence,omitempty"`
	RequiredEvidence    []string       `json:"required_evidence,omitempty" yaml:"required_evidence,omitempty"`
	RequiredAnyEvidence []string       `json:"required_any_evidence,omitempty" yaml:"required_any_evidence,omitempty"`
	EvidenceTiers       map[string]int `json:"evidence_tiers,omitempty" yaml:"evidence_tiers,omitempty"`

	RequireSkillFile *bool `json:"require_skill_file,omitempty" yaml:"require_skill_file,omitempty"`
}

// NeedsSkillFile reports whether skill-file read evidence is required. It
// defaults to true when the case does not say.
func (c *Case) NeedsSkillFile() bool {
	return c.RequireSkillFile == nil || *c.RequireSkillFile
}

type document struct {
	Cases []Case `json:"cases" yaml:"cases"`
}

// Load reads a case file. JSON files may hold either a bare array or an
// object with a "cases" array; .yaml and .yml files accept the same shapes.
func Load(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases %s: %w", path, err)
	}
	var list []Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		list, err = parseYAML(data)
	default:
		list, err = parseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing cases %s: %w", path, err)
	}
	if err := validate(list); err != nil {
		return nil, fmt.Errorf("invalid cases %s: %w", path, err)
	}
	return list, nil
}

func parseJSON(data []byte) ([]Case, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Case
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Cases, nil
}

func parseYAML(data []byte) ([]Case, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var list []Case
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc document
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Cases, nil
}

func validate(list []Case) error {
	seen := make(map[string]bool)
	for i, c := range list {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("case %d: case_id is required", i)
		}
		key := strings.ToLower(c.ID)
		if seen[key] {
			return fmt.Errorf("case %q: duplicate case_id", c.ID)
		}
		seen[key] = true
		if strings.TrimSpace(c.Prompt) == "" {
			return fmt.Errorf("case %q: prompt is required", c.ID)
		}
		for token, floor := range c.EvidenceTiers {
			if floor < 1 || floor > 3 {
				return fmt.Errorf("case %q: evidence_tiers[%q] must be 1, 2 or 3", c.ID, token)
			}
		}
	}
	return nil
}

// Filter keeps cases whose category matches one of categories and whose id is
// one of ids. Empty filters match everything; comparisons ignore case.
func Filter(list []Case, categories, ids []string) []Case {
	var out []Case
	for _, c := range list {
		if len(categories) > 0 && !matchAny(c.Category, categories, MatchCategory) {
			continue
		}
		if len(ids) > 0 && !matchAny(c.ID, ids, strings.EqualFold) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchAny(value string, patterns []string, match func(string, string) bool) bool {
	for _, p := range patterns {
		if match(value, p) {
			return true
		}
	}
	return false
}

// MatchCategory compares a category against a pattern; "prefix/*" matches any
// category under prefix.
func MatchCategory(category, pattern string) bool {
	category = strings.ToLower(category)
	pattern = strings.ToLower(pattern)
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		return strings.HasPrefix(category, prefix+"/")
	}
	return category == pattern
}
