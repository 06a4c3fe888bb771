package rules

import "strings"

// Unicode-aware replacements for the Perl shorthand classes. RE2 limits \s to
// [\t\n\f\r ] and \d to ASCII digits; extracted PDF and OCR text is full of
// no-break and typographic spaces that rules are expected to see as spacing.
const (
	spaceSet    = `\x1c-\x1f\x85\v\p{Z}\s`
	digitSet    = `\p{Nd}`
	nonDigitSet = `\P{Nd}`
)

// widenClasses rewrites \s, \S, \d and \D in a pattern so they match Unicode
// spacing and decimal digits. Escaped backslashes, \Q...\E literals and POSIX
// classes are copied unchanged. A \S inside a bracket class has no union form
// and is left as RE2 defines it.
func widenClasses(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 16)

	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			next := pattern[i+1]
			i++
			switch next {
			case 's':
				if inClass {
					b.WriteString(spaceSet)
				} else {
					b.WriteString("[" + spaceSet + "]")
				}
			case 'S':
				if inClass {
					b.WriteString(`\S`)
				} else {
					b.WriteString("[^" + spaceSet + "]")
				}
			case 'd':
				b.WriteString(digitSet)
			case 'D':
				b.WriteString(nonDigitSet)
			case 'Q':
				end := strings.Index(pattern[i+1:], `\E`)
				if end < 0 {
					b.WriteString(pattern[i-1:])
					return b.String()
				}
				b.WriteString(pattern[i-1 : i+1+end+2])
				i += end + 2
			default:
				b.WriteByte(c)
				b.WriteByte(next)
			}
		case inClass && c == '[' && i+1 < len(pattern) && pattern[i+1] == ':':
			end := strings.Index(pattern[i:], ":]")
			if end < 0 {
				b.WriteString(pattern[i:])
				return b.String()
			}
			b.WriteString(pattern[i : i+end+2])
			i += end + 1
		case !inClass && c == '[':
			inClass = true
			b.WriteByte(c)
			// A leading ] (after an optional ^) is a literal member.
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
		case inClass && c == ']':
			inClass = false
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
