package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/rules"
	"github.com/a3tai/contract-guardian/internal/scanner"
)

const excerptCellLen = 120

// MarkdownWriter outputs a human-readable report
type MarkdownWriter struct {
	output io.Writer
	order  Order
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer
func NewMarkdownWriter(output io.Writer, order Order) *MarkdownWriter {
	return &MarkdownWriter{output: output, order: order}
}

// Write renders res
func (w *MarkdownWriter) Write(res *analysis.Result) error {
	md := markdown.NewMarkdown(w.output)
	flags := ordered(res, w.order)
	summary := scanner.Summarize(flags)

	w.writeHeader(md, res)
	w.writeSummary(md, summary)
	w.writeFlags(md, flags)
	w.writeNarrative(md, res)
	w.writeWarnings(md, res.Warnings)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by contract-guardian. Flags are pattern matches, not legal advice.*")

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, res *analysis.Result) {
	title := res.Title
	if title == "" {
		title = "Untitled contract"
	}
	md.H1("Contract Analysis: " + title)
	md.PlainText("")

	chars := strconv.Itoa(res.AnalyzedChars)
	if res.Truncated {
		chars = fmt.Sprintf("%d of %d (truncated)", res.AnalyzedChars, res.TotalChars)
	}
	ocr := "no"
	if res.UsedOCR {
		ocr = "yes"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Analysis ID", "`" + res.ID + "`"},
			{"Extraction", orDash(res.Method)},
			{"OCR used", ocr},
			{"Characters analyzed", chars},
			{"Duration", res.Duration.String()},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s scanner.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 High", strconv.Itoa(s.BySeverity[rules.SeverityHigh])},
			{"🟡 Medium", strconv.Itoa(s.BySeverity[rules.SeverityMedium])},
			{"🔵 Low", strconv.Itoa(s.BySeverity[rules.SeverityLow])},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case s.BySeverity[rules.SeverityHigh] > 0:
		md.Warningf("%d high severity clause(s) found. Review them before signing.", s.BySeverity[rules.SeverityHigh])
	case s.BySeverity[rules.SeverityMedium] > 0:
		md.Importantf("%d medium severity clause(s) found.", s.BySeverity[rules.SeverityMedium])
	case s.Total > 0:
		md.Note("Only low severity clauses found.")
	default:
		md.Tip("No risky clauses matched.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFlags(md *markdown.Markdown, flags []scanner.Flag) {
	md.H2("Flags")
	md.PlainText("")
	if len(flags) == 0 {
		md.PlainText("No clauses matched the rule catalog.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(flags))
	for i, f := range flags {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			string(f.Severity),
			f.Category,
			fmt.Sprintf("%d-%d", f.StartIndex, f.EndIndex),
			escapeCell(clip(f.Excerpt, excerptCellLen)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Severity", "Category", "Position", "Excerpt"},
		Rows:   rows,
	})
	md.PlainText("")

	for i, f := range flags {
		md.Details(fmt.Sprintf("%d. %s", i+1, f.Category), f.Explanation+"\n\nGuidance: "+f.Guidance)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeNarrative(md *markdown.Markdown, res *analysis.Result) {
	n := res.Narrative
	if n == nil {
		return
	}
	md.H2("Advisor Narrative")
	md.PlainText("")
	if n.Summary != "" {
		md.PlainText(n.Summary)
		md.PlainText("")
	}
	if len(n.KeyRisks) > 0 {
		md.H3("Key Risks")
		md.PlainText("")
		items := make([]string, len(n.KeyRisks))
		for i, r := range n.KeyRisks {
			items[i] = r.Risk
			if r.Impact != "" {
				items[i] += ": " + r.Impact
			}
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(n.Recommendations) > 0 {
		md.H3("Recommendations")
		md.PlainText("")
		md.BulletList(n.Recommendations...)
		md.PlainText("")
	}
	if n.OverallAssessment != "" {
		md.PlainTextf("**Overall assessment:** %s", n.OverallAssessment)
		md.PlainText("")
	}
	md.PlainTextf("Confidence: %.2f", n.ConfidenceScore)
	md.PlainText("")
}

func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	md.H2("Warnings")
	md.PlainText("")
	md.BulletList(warnings...)
	md.PlainText("")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// clip shortens s to n code points with an ellipsis
func clip(s string, n int) string {
	cut, truncated := scanner.Truncate(s, n)
	if !truncated {
		return s
	}
	return cut + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
