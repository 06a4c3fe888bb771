package scanner

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/a3tai/contract-guardian/internal/rules"
)

// ExcerptRadius is the number of characters kept on each side of a match
const ExcerptRadius = 80

// Flag is a single detected risky clause. Offsets are code-point indices into
// the analyzed text. The JSON shape is persisted verbatim by callers.
type Flag struct {
	Category    string         `json:"category"`
	Severity    rules.Severity `json:"severity"`
	StartIndex  int            `json:"start_index"`
	EndIndex    int            `json:"end_index"`
	Excerpt     string         `json:"excerpt"`
	Explanation string         `json:"explanation"`
	Guidance    string         `json:"guidance"`
}

// Scan runs every rule of the catalog over text. The result is grouped by
// rule in catalog order, each group in left-to-right text order; it is not
// globally sorted by position.
func Scan(text string, catalog *rules.Catalog) []Flag {
	flags, _ := ScanContext(context.Background(), text, catalog)
	return flags
}

// ScanContext is Scan with cancellation checked between rules. On
// cancellation no partial result is returned.
func ScanContext(ctx context.Context, text string, catalog *rules.Catalog) ([]Flag, error) {
	flags := []Flag{}
	if text == "" || catalog.Len() == 0 {
		return flags, nil
	}

	idx := newRuneIndex(text)
	for i := 0; i < catalog.Len(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rule := catalog.At(i)
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			start, end := idx.runeOffset(loc[0]), idx.runeOffset(loc[1])
			flags = append(flags, Flag{
				Category:    rule.Category,
				Severity:    rule.Severity,
				StartIndex:  start,
				EndIndex:    end,
				Excerpt:     idx.slice(max(0, start-ExcerptRadius), min(idx.length, end+ExcerptRadius)),
				Explanation: rule.Explanation,
				Guidance:    rule.Guidance,
			})
		}
	}
	return flags, nil
}

// runeIndex converts byte offsets reported by regexp into code-point offsets.
// ASCII text needs no table.
type runeIndex struct {
	text   string
	length int
	byRune []int // byte offset of each rune, plus len(text)
	ascii  bool
}

func newRuneIndex(text string) *runeIndex {
	idx := &runeIndex{text: text}
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		idx.ascii = true
		idx.length = len(text)
		return idx
	}

	idx.byRune = make([]int, 0, len(text)+1)
	for i := 0; i < len(text); {
		idx.byRune = append(idx.byRune, i)
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	idx.length = len(idx.byRune)
	idx.byRune = append(idx.byRune, len(text))
	return idx
}

func (r *runeIndex) runeOffset(byteOff int) int {
	if r.ascii {
		return byteOff
	}
	return sort.SearchInts(r.byRune, byteOff)
}

func (r *runeIndex) slice(start, end int) string {
	if r.ascii {
		return r.text[start:end]
	}
	return r.text[r.byRune[start]:r.byRune[end]]
}

// RuneLen returns the length of s in code points, counting each invalid byte as one
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns the leading n code points of s and whether anything was cut
func Truncate(s string, n int) (string, bool) {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
