package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/a3tai/contract-guardian/internal/errors"
)

const (
	DefaultDPI      = 200
	DefaultMaxPages = 10
)

// Config controls the external tools used by the robust and OCR tiers
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	PSM           int // tesseract page segmentation mode, 0 = tesseract default

	DPI      int // rasterization DPI for OCR, default 200
	MaxPages int // pages rasterized for OCR, default 10

	TempDir string // scratch space for staged files, default os.TempDir()
}

// ExtractionResult is the text recovered from one document
type ExtractionResult struct {
	Text     string        `json:"text"`
	UsedOCR  bool          `json:"used_ocr"`
	Kind     MediaKind     `json:"kind"`
	Tier     Tier          `json:"tier,omitempty"`
	Method   string        `json:"method"` // "pdf-native" | "pdf-robust:<backend>" | "pdf-ocr" | "image-ocr" | "text"
	Pages    int           `json:"pages,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Extractor recovers text from PDF, image, and text documents
type Extractor struct {
	cfg     Config
	backend map[Tier][]PDFBackend
	ocr     *ocrEngine
	logger  *slog.Logger
}

// Option customizes an Extractor
type Option func(*Extractor)

// WithRunner replaces the command runner used for pdftotext, pdftoppm and tesseract
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		e.ocr.runner = r
		for _, b := range e.backend[TierRobust] {
			if lb, ok := b.(*LayoutBackend); ok {
				lb.runner = r
			}
		}
	}
}

// WithBackends replaces the PDF backends tried within a tier, in order
func WithBackends(tier Tier, backends ...PDFBackend) Option {
	return func(e *Extractor) {
		e.backend[tier] = backends
	}
}

func withLookPath(fn func(string) (string, error)) Option {
	return func(e *Extractor) {
		e.ocr.lookPath = fn
		for _, b := range e.backend[TierRobust] {
			if lb, ok := b.(*LayoutBackend); ok {
				lb.lookPath = fn
			}
		}
	}
}

// NewExtractor creates an Extractor. Unset configuration fields take defaults.
func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}

	runner := execRunner{logger: logger}
	e := &Extractor{
		cfg: cfg,
		backend: map[Tier][]PDFBackend{
			TierNative: {NativeBackend{}},
			TierRobust: {ContentStreamBackend{}, NewLayoutBackend(cfg.Pdftotext, cfg.TempDir, runner)},
		},
		ocr:    &ocrEngine{cfg: cfg, runner: runner, lookPath: exec.LookPath},
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *Extractor) Config() Config {
	return e.cfg
}

// OCRAvailable reports whether the pdftoppm and tesseract binaries can be found
func (e *Extractor) OCRAvailable() bool {
	return e.ocr.requireBinaries(e.cfg.Pdftoppm, e.cfg.Tesseract) == nil
}

// Extract recovers text from data according to its declared kind. PDF input
// walks the tier chain; image input goes straight to OCR; anything else is
// decoded as text. Cancellation of ctx is returned as ctx.Err().
func (e *Extractor) Extract(ctx context.Context, data []byte, kind MediaKind) (ExtractionResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return ExtractionResult{Kind: kind}, err
	}
	e.logger.Debug("extract.start", "kind", kind, "bytes", len(data))

	var (
		res ExtractionResult
		err error
	)
	switch kind {
	case KindPDF:
		res, err = e.extractPDF(ctx, data)
	case KindImage:
		res, err = e.extractImage(ctx, data)
	default:
		res = ExtractionResult{Text: decodeText(data), Method: "text"}
	}
	res.Kind = kind
	res.Duration = time.Since(start)

	if err != nil {
		e.logger.Warn("extract.fail", "kind", kind, "duration_ms", res.Duration.Milliseconds(), "error", err)
		return res, err
	}
	e.logger.Info("extract.done",
		"kind", kind,
		"method", res.Method,
		"used_ocr", res.UsedOCR,
		"chars", utf8.RuneCountInString(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (ExtractionResult, error) {
	var res ExtractionResult
	var diagnostics []string

	tier := TierNative
	for tier != TierExhausted {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, err := e.runTier(ctx, tier, data)
		res.Warnings = append(res.Warnings, out.Warnings...)

		next, accepted := Advance(tier, out.Text, err)
		if accepted {
			out.Warnings = res.Warnings
			out.Tier = tier
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if errors.Is(err, errOCRUnavailable) {
			return res, apperrors.Wrap(apperrors.KindExtractionFailure, "OCR backend unavailable", err).
				WithContext(strings.Join(diagnostics, "; "))
		}

		reason := "no text"
		if err != nil {
			reason = err.Error()
		}
		diagnostics = append(diagnostics, fmt.Sprintf("%s: %s", tier, reason))
		e.logger.Debug("extract.tier.fail", "tier", tier, "reason", reason)
		tier = next
	}

	return res, apperrors.New(apperrors.KindExtractionFailure, "no text could be extracted from PDF").
		WithContext(strings.Join(diagnostics, "; "))
}

// runTier tries each backend of a tier in order and returns the first
// non-blank output. Backend errors are joined when none succeed.
func (e *Extractor) runTier(ctx context.Context, tier Tier, data []byte) (ExtractionResult, error) {
	if tier == TierOCR {
		text, pages, warnings, err := e.ocr.pdf(ctx, data)
		return ExtractionResult{
			Text:     text,
			UsedOCR:  true,
			Method:   "pdf-ocr",
			Pages:    pages,
			Warnings: warnings,
		}, err
	}

	var errs []error
	for _, b := range e.backend[tier] {
		if err := ctx.Err(); err != nil {
			return ExtractionResult{}, err
		}
		text, pages, err := extractPages(ctx, b, data)
		if err != nil {
			e.logger.Debug("extract.backend.fail", "tier", tier, "backend", b.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		if !hasText(text) {
			continue
		}

		method := "pdf-native"
		if tier == TierRobust {
			method = "pdf-robust:" + b.Name()
		}
		return ExtractionResult{Text: normalizePDF(text), Method: method, Pages: pages}, nil
	}
	return ExtractionResult{}, errors.Join(errs...)
}

// extractPages runs a backend, taking the page count from it when it reports one
func extractPages(ctx context.Context, b PDFBackend, data []byte) (string, int, error) {
	if pb, ok := b.(PagedBackend); ok {
		return pb.ExtractPages(ctx, data)
	}
	text, err := b.ExtractText(ctx, data)
	return text, 0, err
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (ExtractionResult, error) {
	res := ExtractionResult{UsedOCR: true, Method: "image-ocr", Pages: 1}

	text, format, err := e.ocr.recognizeImage(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		msg := "image could not be recognized"
		if errors.Is(err, errOCRUnavailable) {
			msg = "OCR backend unavailable"
		}
		return res, apperrors.Wrap(apperrors.KindExtractionFailure, msg, err)
	}
	if !hasText(text) {
		return res, apperrors.New(apperrors.KindExtractionFailure, "OCR produced no text").WithContext("format " + format)
	}
	res.Text = text
	return res, nil
}
