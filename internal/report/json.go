package report

import (
	"encoding/json"
	"io"

	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/scanner"
)

// JSONWriter outputs the result, plus a flag summary, as JSON
type JSONWriter struct {
	output io.Writer
	order  Order
	indent string
}

// JSONWriterOption configures a JSONWriter
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indentation
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) { w.indent = "  " }
}

// WithOrder sets the flag order
func WithOrder(order Order) JSONWriterOption {
	return func(w *JSONWriter) { w.order = order }
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{output: output, order: OrderRule}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type jsonReport struct {
	*analysis.Result
	Summary scanner.Summary `json:"summary"`
}

// Write encodes res
func (w *JSONWriter) Write(res *analysis.Result) error {
	out := *res
	out.Flags = ordered(res, w.order)

	enc := json.NewEncoder(w.output)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	return enc.Encode(jsonReport{Result: &out, Summary: scanner.Summarize(out.Flags)})
}
