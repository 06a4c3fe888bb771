package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/rules"
	"github.com/a3tai/contract-guardian/internal/scanner"
)

const (
	flagsSheet   = "Flags"
	summarySheet = "Summary"
)

// XLSXWriter outputs a workbook with one row per flag and a summary sheet
type XLSXWriter struct {
	output io.Writer
	order  Order
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer
func NewXLSXWriter(output io.Writer, order Order) *XLSXWriter {
	return &XLSXWriter{output: output, order: order}
}

// Write renders res as an xlsx workbook
func (w *XLSXWriter) Write(res *analysis.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	// the default workbook starts with Sheet1; rename it rather than leave it empty
	if err := f.SetSheetName("Sheet1", flagsSheet); err != nil {
		return fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("xlsx new sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(flagsSheet)
	f.SetActiveSheet(idx)

	flags := ordered(res, w.order)
	writeRow := func(sheet string, row int, values ...any) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	writeRow(flagsSheet, 1, "Category", "Severity", "Start", "End", "Excerpt", "Explanation", "Guidance")
	for i, fl := range flags {
		writeRow(flagsSheet, i+2, fl.Category, string(fl.Severity), fl.StartIndex, fl.EndIndex, fl.Excerpt, fl.Explanation, fl.Guidance)
	}
	_ = f.SetColWidth(flagsSheet, "A", "A", 30)
	_ = f.SetColWidth(flagsSheet, "B", "D", 10)
	_ = f.SetColWidth(flagsSheet, "E", "E", 80)
	_ = f.SetColWidth(flagsSheet, "F", "G", 60)

	s := scanner.Summarize(flags)
	row := 1
	props := [][]any{
		{"Title", res.Title},
		{"Analysis ID", res.ID},
		{"Extraction", res.Method},
		{"OCR used", strconv.FormatBool(res.UsedOCR)},
		{"Characters analyzed", res.AnalyzedChars},
		{"Total characters", res.TotalChars},
		{"Truncated", strconv.FormatBool(res.Truncated)},
		{"High", s.BySeverity[rules.SeverityHigh]},
		{"Medium", s.BySeverity[rules.SeverityMedium]},
		{"Low", s.BySeverity[rules.SeverityLow]},
		{"Total flags", s.Total},
	}
	for _, p := range props {
		writeRow(summarySheet, row, p...)
		row++
	}
	if n := res.Narrative; n != nil {
		writeRow(summarySheet, row, "Narrative", n.Summary)
		row++
		writeRow(summarySheet, row, "Overall assessment", n.OverallAssessment)
		row++
		writeRow(summarySheet, row, "Confidence", n.ConfidenceScore)
		row++
		writeRow(summarySheet, row, "Recommendations", strings.Join(n.Recommendations, "\n"))
		row++
	}
	if len(res.Warnings) > 0 {
		writeRow(summarySheet, row, "Warnings", strings.Join(res.Warnings, "\n"))
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 80)

	if _, err := f.WriteTo(w.output); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
