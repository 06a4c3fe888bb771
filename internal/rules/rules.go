package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Severity grades how harmful a flagged clause is likely to be
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity converts a case-insensitive name into a Severity
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	default:
		return "", fmt.Errorf("invalid severity %q (must be one of: low, medium, high)", s)
	}
}

// Rank orders severities from least (1) to most (3) severe; unknown values rank 0
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Rule is a compiled detection pattern plus the metadata reported when it matches.
// The same category may appear on several rules with different patterns.
type Rule struct {
	Category    string
	Severity    Severity
	Source      string // pattern as written
	Pattern     *regexp.Regexp
	Explanation string
	Guidance    string
}

// NewRule compiles pattern case-insensitively and validates the rule.
// \s and \d in the pattern match Unicode spacing and digits.
func NewRule(category string, severity Severity, pattern, explanation, guidance string) (Rule, error) {
	if strings.TrimSpace(category) == "" {
		return Rule{}, fmt.Errorf("rule category cannot be empty")
	}
	if severity.Rank() == 0 {
		return Rule{}, fmt.Errorf("rule %q: invalid severity %q", category, severity)
	}
	if pattern == "" {
		return Rule{}, fmt.Errorf("rule %q: pattern cannot be empty", category)
	}
	re, err := regexp.Compile("(?i)" + widenClasses(pattern))
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: invalid pattern: %w", category, err)
	}
	// Flags must cover at least one character.
	if re.MatchString("") {
		return Rule{}, fmt.Errorf("rule %q: pattern %q matches the empty string", category, pattern)
	}
	return Rule{
		Category:    category,
		Severity:    severity,
		Source:      pattern,
		Pattern:     re,
		Explanation: explanation,
		Guidance:    guidance,
	}, nil
}

func mustRule(category string, severity Severity, pattern, explanation, guidance string) Rule {
	r, err := NewRule(category, severity, pattern, explanation, guidance)
	if err != nil {
		panic(err)
	}
	return r
}

// Catalog is an immutable ordered sequence of rules. It is safe for
// concurrent use; compiled regexps are shared read-only.
type Catalog struct {
	rules []Rule
}

// NewCatalog creates a catalog holding a copy of the given rules
func NewCatalog(rules ...Rule) *Catalog {
	return &Catalog{rules: slices.Clone(rules)}
}

// Len returns the number of rules
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// At returns the i-th rule in catalog order. It panics when i is out of
// range, including on a nil catalog.
func (c *Catalog) At(i int) Rule {
	if i < 0 || i >= c.Len() {
		panic(fmt.Sprintf("rules: index %d out of range [0:%d]", i, c.Len()))
	}
	return c.rules[i]
}

// Rules returns a copy of the rules in catalog order
func (c *Catalog) Rules() []Rule {
	if c == nil {
		return nil
	}
	return slices.Clone(c.rules)
}

// Extend returns a new catalog with extra rules appended after the existing ones.
// The receiver is left untouched.
func (c *Catalog) Extend(extra ...Rule) *Catalog {
	merged := make([]Rule, 0, c.Len()+len(extra))
	if c != nil {
		merged = append(merged, c.rules...)
	}
	merged = append(merged, extra...)
	return &Catalog{rules: merged}
}

// Categories lists distinct categories in first-appearance order
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool, len(c.rules))
	var out []string
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}
