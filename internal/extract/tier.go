package extract

import "strings"

// Tier is one PDF extraction strategy, attempted in a fixed order
type Tier int

const (
	TierNone Tier = iota
	TierNative
	TierRobust
	TierOCR
	TierExhausted
)

// String returns a string representation of the Tier
func (t Tier) String() string {
	switch t {
	case TierNative:
		return "native"
	case TierRobust:
		return "robust"
	case TierOCR:
		return "ocr"
	case TierExhausted:
		return "exhausted"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Advance is the transition rule of the tier state machine. A tier's output is
// accepted when it returned no error and text that is not only whitespace;
// otherwise extraction moves on to the following tier. TierExhausted is terminal.
func Advance(t Tier, text string, err error) (next Tier, accepted bool) {
	if t >= TierExhausted || t <= TierNone {
		return TierExhausted, false
	}
	if err == nil && hasText(text) {
		return t, true
	}
	return t + 1, false
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
