package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/scanner"
)

// Format selects a report encoding
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat converts a user-supplied format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("invalid format %q (must be one of: json, markdown, xlsx)", s)
	}
}

// Writer renders an analysis result
type Writer interface {
	Write(res *analysis.Result) error
}

// Order selects how flags are listed
type Order string

const (
	// OrderRule keeps the matcher's grouped-by-rule order
	OrderRule Order = "rule"
	// OrderPosition lists flags in reading order
	OrderPosition Order = "position"
)

// ParseOrder converts a user-supplied order name
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule", "":
		return OrderRule, nil
	case "position":
		return OrderPosition, nil
	default:
		return "", fmt.Errorf("invalid sort order %q (must be one of: rule, position)", s)
	}
}

// New returns the Writer for format
func New(format Format, output io.Writer, order Order) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithOrder(order), WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, order), nil
	case FormatXLSX:
		return NewXLSXWriter(output, order), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// ordered returns the flags of res in the requested order
func ordered(res *analysis.Result, order Order) []scanner.Flag {
	if order == OrderPosition {
		return scanner.SortByPosition(res.Flags)
	}
	return res.Flags
}
