package scanner

import (
	"slices"

	"github.com/a3tai/contract-guardian/internal/rules"
)

// SortByPosition returns a reading-order copy of flags. Ties keep their
// catalog order. The input is not modified.
func SortByPosition(flags []Flag) []Flag {
	out := slices.Clone(flags)
	slices.SortStableFunc(out, func(a, b Flag) int {
		if a.StartIndex != b.StartIndex {
			return a.StartIndex - b.StartIndex
		}
		return a.EndIndex - b.EndIndex
	})
	return out
}

// Summary counts flags by severity and category
type Summary struct {
	Total      int                    `json:"total"`
	BySeverity map[rules.Severity]int `json:"by_severity"`
	ByCategory map[string]int         `json:"by_category"`
	Categories []string               `json:"categories"` // first-appearance order
	Highest    rules.Severity         `json:"highest,omitempty"`
}

// Summarize builds a Summary of flags
func Summarize(flags []Flag) Summary {
	s := Summary{
		Total:      len(flags),
		BySeverity: make(map[rules.Severity]int),
		ByCategory: make(map[string]int),
	}
	for _, f := range flags {
		s.BySeverity[f.Severity]++
		if s.ByCategory[f.Category] == 0 {
			s.Categories = append(s.Categories, f.Category)
		}
		s.ByCategory[f.Category]++
		if f.Severity.Rank() > s.Highest.Rank() {
			s.Highest = f.Severity
		}
	}
	return s
}
