package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/contract-guardian/internal/advisory"
	apperrors "github.com/a3tai/contract-guardian/internal/errors"
	"github.com/a3tai/contract-guardian/internal/extract"
	"github.com/a3tai/contract-guardian/internal/logger"
	"github.com/a3tai/contract-guardian/internal/rules"
	"github.com/a3tai/contract-guardian/internal/scanner"
)

// Reference budgets
const (
	DefaultMaxAnalysisChars = 50000
	DefaultMaxAdvisoryChars = 8000
	DefaultExtractTimeout   = 60 * time.Second
	DefaultScanTimeout      = 30 * time.Second
	DefaultAdvisoryTimeout  = 30 * time.Second
)

// TextSource recovers text from document bytes
type TextSource interface {
	Extract(ctx context.Context, data []byte, kind extract.MediaKind) (extract.ExtractionResult, error)
}

// Options are the per-analysis size and time budgets. Zero fields take the
// reference defaults.
type Options struct {
	MaxAnalysisChars int
	MaxAdvisoryChars int
	ExtractTimeout   time.Duration
	ScanTimeout      time.Duration
	AdvisoryTimeout  time.Duration
}

// DefaultOptions returns the reference budgets
func DefaultOptions() Options {
	return Options{
		MaxAnalysisChars: DefaultMaxAnalysisChars,
		MaxAdvisoryChars: DefaultMaxAdvisoryChars,
		ExtractTimeout:   DefaultExtractTimeout,
		ScanTimeout:      DefaultScanTimeout,
		AdvisoryTimeout:  DefaultAdvisoryTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAnalysisChars <= 0 {
		o.MaxAnalysisChars = d.MaxAnalysisChars
	}
	if o.MaxAdvisoryChars <= 0 {
		o.MaxAdvisoryChars = d.MaxAdvisoryChars
	}
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = d.ExtractTimeout
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = d.ScanTimeout
	}
	if o.AdvisoryTimeout <= 0 {
		o.AdvisoryTimeout = d.AdvisoryTimeout
	}
	return o
}

// Result is the outcome of one analysis
type Result struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Flags         []scanner.Flag      `json:"flags"`
	Narrative     *advisory.Narrative `json:"narrative,omitempty"`
	Truncated     bool                `json:"truncated"`
	AnalyzedChars int                 `json:"analyzed_chars"`
	TotalChars    int                 `json:"total_chars"`
	UsedOCR       bool                `json:"used_ocr"`
	Method        string              `json:"method,omitempty"`
	Warnings      []string            `json:"warnings,omitempty"`
	Duration      time.Duration       `json:"duration"`
}

// CallOption adjusts a single Analyze or AnalyzeText call
type CallOption func(*call)

type call struct {
	skipAdvisory bool
}

// WithoutAdvisory skips the narrative for this call
func WithoutAdvisory() CallOption {
	return func(c *call) { c.skipAdvisory = true }
}

// Coordinator runs extraction, pattern matching and the optional advisory
// call under per-stage budgets. It holds no per-analysis state and is safe
// for concurrent use.
type Coordinator struct {
	source  TextSource
	catalog *rules.Catalog
	advisor advisory.Advisor
	opts    Options
	logger  *slog.Logger
}

// NewCoordinator wires the pipeline. A nil catalog means rules.Default() and a
// nil advisor means advisory.Noop.
func NewCoordinator(source TextSource, catalog *rules.Catalog, advisor advisory.Advisor, opts Options, log *slog.Logger) *Coordinator {
	if catalog == nil {
		catalog = rules.Default()
	}
	if advisor == nil {
		advisor = advisory.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		source:  source,
		catalog: catalog,
		advisor: advisor,
		opts:    opts.withDefaults(),
		logger:  log,
	}
}

// Catalog returns the rule catalog used for matching
func (c *Coordinator) Catalog() *rules.Catalog { return c.catalog }

// Advisor returns the advisory collaborator
func (c *Coordinator) Advisor() advisory.Advisor { return c.advisor }

// Options returns the effective budgets
func (c *Coordinator) Options() Options { return c.opts }

// Analyze extracts text from data and scans it. Extraction failures and
// timeouts are returned as *errors.Error with distinct kinds; advisory
// failures only add a warning.
func (c *Coordinator) Analyze(ctx context.Context, data []byte, kind extract.MediaKind, title string, opts ...CallOption) (*Result, error) {
	start := time.Now()
	id := uuid.New().String()
	ctx = logger.WithAnalysisID(ctx, id)
	log := logger.WithContext(ctx, c.logger)

	if c.source == nil {
		return nil, apperrors.New(apperrors.KindExtractionFailure, "no text extractor configured")
	}

	ext, err := c.extract(ctx, data, kind)
	if err != nil {
		log.Warn("analysis.extract.fail", "kind", kind, "error", err)
		return nil, err
	}

	res, err := c.run(ctx, id, ext.Text, title, opts)
	if err != nil {
		return nil, err
	}
	res.UsedOCR = ext.UsedOCR
	res.Method = ext.Method
	res.Warnings = append(append([]string(nil), ext.Warnings...), res.Warnings...)
	res.Duration = time.Since(start)

	log.Info("analysis.done",
		"method", res.Method,
		"used_ocr", res.UsedOCR,
		"flags", len(res.Flags),
		"truncated", res.Truncated,
		"narrative", res.Narrative != nil,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// AnalyzeText scans text that is already available, skipping extraction
func (c *Coordinator) AnalyzeText(ctx context.Context, text, title string, opts ...CallOption) (*Result, error) {
	start := time.Now()
	id := uuid.New().String()
	ctx = logger.WithAnalysisID(ctx, id)

	res, err := c.run(ctx, id, text, title, opts)
	if err != nil {
		return nil, err
	}
	res.Method = "text"
	res.Duration = time.Since(start)

	logger.WithContext(ctx, c.logger).Info("analysis.done",
		"method", res.Method,
		"flags", len(res.Flags),
		"truncated", res.Truncated,
		"narrative", res.Narrative != nil,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, id, text, title string, opts []CallOption) (*Result, error) {
	var cl call
	for _, o := range opts {
		o(&cl)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.KindExtractionFailure, "no text could be extracted")
	}

	res := &Result{ID: id, Title: title, TotalChars: scanner.RuneLen(text)}

	analyzed, truncated := scanner.Truncate(text, c.opts.MaxAnalysisChars)
	res.Truncated = truncated
	res.AnalyzedChars = scanner.RuneLen(analyzed)
	if truncated {
		res.Warnings = append(res.Warnings, fmt.Sprintf("text truncated to %d of %d characters for analysis", res.AnalyzedChars, res.TotalChars))
	}

	adviseText, cut := scanner.Truncate(text, c.opts.MaxAdvisoryChars)
	if cut {
		adviseText += advisory.TruncationMarker
	}

	var (
		flags     []scanner.Flag
		narrative *advisory.Narrative
		warning   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		flags, err = c.scan(gctx, analyzed)
		return err
	})
	if !cl.skipAdvisory && !advisory.IsNoop(c.advisor) {
		g.Go(func() error {
			narrative, warning = c.advise(gctx, adviseText, title)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Flags = flags
	res.Narrative = narrative
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	return res, nil
}

type extraction struct {
	res extract.ExtractionResult
	err error
}

// extract runs the text source under the extraction budget. The budget
// expiring is an ExtractionTimeout; the caller's own cancellation is returned
// as the context error.
func (c *Coordinator) extract(ctx context.Context, data []byte, kind extract.MediaKind) (extract.ExtractionResult, error) {
	ectx, cancel := context.WithTimeout(ctx, c.opts.ExtractTimeout)
	defer cancel()

	ch := make(chan extraction, 1)
	go func() {
		r, err := c.source.Extract(ectx, data, kind)
		ch <- extraction{r, err}
	}()

	var out extraction
	select {
	case out = <-ch:
	case <-ectx.Done():
		select {
		case out = <-ch:
		default:
			out.err = ectx.Err()
		}
	}
	if out.err == nil {
		return out.res, nil
	}

	if ctx.Err() != nil {
		return extract.ExtractionResult{}, ctx.Err()
	}
	if errors.Is(ectx.Err(), context.DeadlineExceeded) {
		return extract.ExtractionResult{}, apperrors.Newf(apperrors.KindExtractionTimeout,
			"extraction exceeded %s", c.opts.ExtractTimeout)
	}
	if apperrors.KindOf(out.err) == apperrors.KindUnknown {
		return extract.ExtractionResult{}, apperrors.Wrap(apperrors.KindExtractionFailure, "extraction failed", out.err)
	}
	return extract.ExtractionResult{}, out.err
}

type scanOutcome struct {
	flags []scanner.Flag
	err   error
}

// scan runs the matcher under the scan budget
func (c *Coordinator) scan(ctx context.Context, text string) ([]scanner.Flag, error) {
	sctx, cancel := context.WithTimeout(ctx, c.opts.ScanTimeout)
	defer cancel()

	ch := make(chan scanOutcome, 1)
	go func() {
		f, err := scanner.ScanContext(sctx, text, c.catalog)
		ch <- scanOutcome{f, err}
	}()

	var out scanOutcome
	select {
	case out = <-ch:
	case <-sctx.Done():
		select {
		case out = <-ch:
		default:
			out.err = sctx.Err()
		}
	}
	if out.err == nil {
		return out.flags, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, apperrors.Newf(apperrors.KindAnalysisTimeout, "pattern matching exceeded %s", c.opts.ScanTimeout)
}

type adviceOutcome struct {
	n   *advisory.Narrative
	err error
}

// advise calls the advisor under its own budget. Failures are reduced to a
// warning string.
func (c *Coordinator) advise(ctx context.Context, text, title string) (*advisory.Narrative, string) {
	actx, cancel := context.WithTimeout(ctx, c.opts.AdvisoryTimeout)
	defer cancel()

	ch := make(chan adviceOutcome, 1)
	go func() {
		n, err := c.advisor.Advise(actx, text, title)
		ch <- adviceOutcome{n, err}
	}()

	var out adviceOutcome
	select {
	case out = <-ch:
	case <-actx.Done():
		out.err = apperrors.Newf(apperrors.KindAdvisoryUnavailable, "advisory exceeded %s", c.opts.AdvisoryTimeout)
	}
	if out.err != nil {
		if !apperrors.Is(out.err, apperrors.KindAdvisoryUnavailable) {
			out.err = apperrors.Wrap(apperrors.KindAdvisoryUnavailable, "advisory failed", out.err)
		}
		logger.WithContext(ctx, c.logger).Warn("analysis.advisory.fail", "error", out.err)
		return nil, "narrative unavailable: " + out.err.Error()
	}
	return out.n, ""
}
