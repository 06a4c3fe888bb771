package rules

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleEntry is the on-disk shape of a rule in a rules file
type ruleEntry struct {
	Category    string `yaml:"category"`
	Severity    string `yaml:"severity"`
	Pattern     string `yaml:"pattern"`
	Explanation string `yaml:"explanation"`
	Guidance    string `yaml:"guidance"`
}

type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

// Parse decodes a YAML rules document of the form
//
//	rules:
//	  - category: Auto-Renewal
//	    severity: medium
//	    pattern: automatically\s+renew
//	    explanation: ...
//	    guidance: ...
//
// Patterns are compiled case-insensitively. Any invalid rule fails the whole document.
func Parse(r io.Reader) ([]Rule, error) {
	var doc rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	out := make([]Rule, 0, len(doc.Rules))
	for i, entry := range doc.Rules {
		sev, err := ParseSeverity(entry.Severity)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rule, err := NewRule(entry.Category, sev, entry.Pattern, entry.Explanation, entry.Guidance)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// LoadFile reads extra rules from a YAML file
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rules file %s: %w", path, err)
	}
	rules, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

// Build returns the default catalog, extended with the rules in path when path is set
func Build(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Default().Extend(extra...), nil
}
