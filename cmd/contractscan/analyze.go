package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/a3tai/contract-guardian/internal/advisory/openai"
	"github.com/a3tai/contract-guardian/internal/analysis"
	apperrors "github.com/a3tai/contract-guardian/internal/errors"
	"github.com/a3tai/contract-guardian/internal/extract"
	"github.com/a3tai/contract-guardian/internal/report"
	"github.com/a3tai/contract-guardian/internal/rules"
)

// errThreshold is returned when --fail-on is met so CI jobs can gate on it
var errThreshold = errors.New("risk threshold reached")

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a contract file and print a report",
		Long: `Analyze recovers the text of a contract and reports every clause that matches
the rule catalog, with its position, severity, explanation, and guidance.

PDF text is read from the native text layer first, then re-parsed from the raw
content streams (and pdftotext when installed), and finally recognized with OCR.

Examples:
  # Markdown report on stdout
  contractscan analyze talent-agreement.pdf --format markdown

  # Spreadsheet of flags in reading order
  contractscan analyze deal.pdf -f xlsx -o deal-flags.xlsx --sort position

  # Fail a CI job when any high severity clause is present
  contractscan analyze contract.txt --fail-on high`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyzeCmd,
	}

	cmd.Flags().StringP("title", "t", "", "Contract title (defaults to the file name)")
	cmd.Flags().StringP("kind", "k", "", "Override media kind detection: pdf, image or text")
	cmd.Flags().StringP("format", "f", "json", "Report format: json, markdown or xlsx")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringP("sort", "s", "rule", "Flag order: rule (catalog order) or position (reading order)")
	cmd.Flags().String("fail-on", "", "Exit non-zero when a flag of this severity or higher is found")
	cmd.Flags().Bool("no-advise", false, "Skip the advisory model narrative")
	cmd.Flags().Int64("max-file-size", extract.DefaultMaxBytes, "Maximum document size in bytes")
	cmd.Flags().Int("ocr-max-pages", extract.DefaultMaxPages, "Maximum pages rasterized for OCR")
	cmd.Flags().Duration("timeout", analysis.DefaultExtractTimeout, "Text extraction budget")

	return cmd
}

type analyzeOptions struct {
	path      string
	title     string
	kind      extract.MediaKind
	format    report.Format
	order     report.Order
	output    string
	failOn    rules.Severity
	noAdvise  bool
	maxBytes  int64
	maxPages  int
	timeout   time.Duration
	rulesFile string
}

func parseAnalyzeOptions(cmd *cobra.Command, args []string) (analyzeOptions, error) {
	flags := cmd.Flags()
	opts := analyzeOptions{path: args[0]}

	opts.title, _ = flags.GetString("title")
	opts.output, _ = flags.GetString("output")
	opts.noAdvise, _ = flags.GetBool("no-advise")
	opts.maxBytes, _ = flags.GetInt64("max-file-size")
	opts.maxPages, _ = flags.GetInt("ocr-max-pages")
	opts.timeout, _ = flags.GetDuration("timeout")
	opts.rulesFile, _ = flags.GetString("rules")

	var err error
	kind, _ := flags.GetString("kind")
	if opts.kind, err = extract.ParseMediaKind(kind); err != nil {
		return opts, err
	}
	format, _ := flags.GetString("format")
	if opts.format, err = report.ParseFormat(format); err != nil {
		return opts, err
	}
	order, _ := flags.GetString("sort")
	if opts.order, err = report.ParseOrder(order); err != nil {
		return opts, err
	}
	if failOn, _ := flags.GetString("fail-on"); failOn != "" {
		if opts.failOn, err = rules.ParseSeverity(failOn); err != nil {
			return opts, err
		}
	}

	if opts.format == report.FormatXLSX && opts.output == "" {
		return opts, errors.New("xlsx output requires --output")
	}
	if opts.title == "" {
		opts.title = strings.TrimSuffix(filepath.Base(opts.path), filepath.Ext(opts.path))
	}
	return opts, nil
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseAnalyzeOptions(cmd, args)
	if err != nil {
		return err
	}
	log := slog.Default()

	catalog, err := rules.Build(opts.rulesFile)
	if err != nil {
		return err
	}

	data, kind, err := extract.ReadFile(opts.path, opts.maxBytes)
	if err != nil {
		return withHint(err)
	}
	if opts.kind != extract.KindUnknown {
		kind = opts.kind
	}

	extractor := extract.NewExtractor(extract.Config{MaxPages: opts.maxPages}, log)
	advisor := openai.New(openai.Config{}, log)
	coordinator := analysis.NewCoordinator(extractor, catalog, advisor, analysis.Options{ExtractTimeout: opts.timeout}, log)

	var callOpts []analysis.CallOption
	if opts.noAdvise {
		callOpts = append(callOpts, analysis.WithoutAdvisory())
	}
	res, err := coordinator.Analyze(cmd.Context(), data, kind, opts.title, callOpts...)
	if err != nil {
		return withHint(err)
	}

	if err := writeReport(cmd.OutOrStdout(), opts, res); err != nil {
		return err
	}

	if opts.failOn != "" {
		for _, f := range res.Flags {
			if f.Severity.Rank() >= opts.failOn.Rank() {
				return fmt.Errorf("%w: %s severity clause found (%s)", errThreshold, f.Severity, f.Category)
			}
		}
	}
	return nil
}

func writeReport(stdout io.Writer, opts analyzeOptions, res *analysis.Result) (err error) {
	out := stdout
	if opts.output != "" {
		f, createErr := os.Create(opts.output)
		if createErr != nil {
			return fmt.Errorf("failed to create output file: %w", createErr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = f
	}

	w, err := report.New(opts.format, out, opts.order)
	if err != nil {
		return err
	}
	return w.Write(res)
}

// withHint appends the user-facing guidance for typed errors
func withHint(err error) error {
	if hint := apperrors.KindOf(err).Hint(); hint != "" {
		return fmt.Errorf("%w (%s)", err, hint)
	}
	return err
}
