package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/contract-guardian/internal/errors"
)

type fakeBackend struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) ExtractText(_ context.Context, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type pagedBackend struct {
	fakeBackend
	pages      int
	pagedCalls int
}

func (p *pagedBackend) ExtractPages(_ context.Context, _ []byte) (string, int, error) {
	p.pagedCalls++
	return p.text, p.pages, p.err
}

type call struct {
	name string
	args []string
}

// fakeRunner renders `pages` PNG files for pdftoppm and answers tesseract
// with pageText keyed by image base name.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []call
	pages     int
	pageText  map[string]string
	pageErr   map[string]bool
	pdftotext string
	rasterErr error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	switch name {
	case "pdftoppm":
		if f.rasterErr != nil {
			return nil, []byte("Syntax Error"), f.rasterErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			p := fmt.Sprintf("%s-%02d.png", prefix, i)
			if err := os.WriteFile(p, []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		base := filepath.Base(args[0])
		if f.pageErr[base] {
			return nil, []byte("Error in pixReadStream"), errors.New("exit status 1")
		}
		if txt, ok := f.pageText[base]; ok {
			return []byte(txt), nil, nil
		}
		return []byte("recognized " + base), nil, nil
	case "pdftotext":
		return []byte(f.pdftotext), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func (f *fakeRunner) callsTo(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func allBinaries(name string) (string, error) { return "/usr/bin/" + name, nil }

func missing(binaries ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, b := range binaries {
			if b == name {
				return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
			}
		}
		return "/usr/bin/" + name, nil
	}
}

func newTestExtractor(t *testing.T, runner Runner, lookPath func(string) (string, error), native, robust []PDFBackend) *Extractor {
	t.Helper()
	return NewExtractor(Config{TempDir: t.TempDir()}, nil,
		WithRunner(runner),
		withLookPath(lookPath),
		WithBackends(TierNative, native...),
		WithBackends(TierRobust, robust...),
	)
}

func TestNewExtractorDefaults(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	cfg := e.Config()
	assert.Equal(t, "pdftotext", cfg.Pdftotext)
	assert.Equal(t, "pdftoppm", cfg.Pdftoppm)
	assert.Equal(t, "tesseract", cfg.Tesseract)
	assert.Equal(t, "eng", cfg.TesseractLang)
	assert.Equal(t, 200, cfg.DPI)
	assert.Equal(t, 10, cfg.MaxPages)

	require.Len(t, e.backend[TierNative], 1)
	require.Len(t, e.backend[TierRobust], 2)
	assert.Equal(t, "ledongthuc", e.backend[TierNative][0].Name())
	assert.Equal(t, "pdfcpu", e.backend[TierRobust][0].Name())
	assert.Equal(t, "pdftotext", e.backend[TierRobust][1].Name())
}

func TestOCRAvailable(t *testing.T) {
	assert.True(t, NewExtractor(Config{}, nil, withLookPath(allBinaries)).OCRAvailable())
	assert.False(t, NewExtractor(Config{}, nil, withLookPath(missing("pdftoppm"))).OCRAvailable())
	assert.False(t, NewExtractor(Config{}, nil, withLookPath(missing("tesseract"))).OCRAvailable())
}

func TestExtractPDFNativeTier(t *testing.T) {
	native := &fakeBackend{name: "native", text: "This grant is in perpetuity"}
	robust := &fakeBackend{name: "robust", text: "unused"}
	runner := &fakeRunner{}
	e := newTestExtractor(t, runner, allBinaries, []PDFBackend{native}, []PDFBackend{robust})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, "This grant is in perpetuity", res.Text)
	assert.False(t, res.UsedOCR)
	assert.Equal(t, TierNative, res.Tier)
	assert.Equal(t, "pdf-native", res.Method)
	assert.Equal(t, KindPDF, res.Kind)
	assert.Equal(t, 0, robust.calls)
	assert.Empty(t, runner.calls)
}

func TestExtractPDFPageCountFromBackend(t *testing.T) {
	native := &pagedBackend{fakeBackend: fakeBackend{name: "native", text: "Net 30"}, pages: 4}
	e := newTestExtractor(t, &fakeRunner{}, allBinaries, []PDFBackend{native}, nil)

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pages)
	assert.Equal(t, 1, native.pagedCalls)
	assert.Equal(t, 0, native.calls)

	// A backend without page information leaves the count unset.
	plain := &fakeBackend{name: "plain", text: "Net 30"}
	e = newTestExtractor(t, &fakeRunner{}, allBinaries, []PDFBackend{plain}, nil)
	res, err = e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pages)
}

func TestExtractPDFRobustTierTriesBackendsInOrder(t *testing.T) {
	native := &fakeBackend{name: "native", text: "   "}
	first := &fakeBackend{name: "first", err: errors.New("broken xref")}
	second := &fakeBackend{name: "second", text: "Net 60 days"}
	e := newTestExtractor(t, &fakeRunner{}, allBinaries, []PDFBackend{native}, []PDFBackend{first, second})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, "Net 60 days", res.Text)
	assert.Equal(t, TierRobust, res.Tier)
	assert.Equal(t, "pdf-robust:second", res.Method)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestExtractPDFFallsThroughToOCR(t *testing.T) {
	native := &fakeBackend{name: "native", text: " \n\t "}
	robust := &fakeBackend{name: "robust", text: ""}
	runner := &fakeRunner{
		pages: 2,
		pageText: map[string]string{
			"page-01.png": "Talent agrees to exclusive services",
			"page-02.png": "Net 90",
		},
	}
	e := newTestExtractor(t, runner, allBinaries, []PDFBackend{native}, []PDFBackend{robust})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.True(t, res.UsedOCR)
	assert.Equal(t, TierOCR, res.Tier)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Talent agrees to exclusive services\nNet 90", res.Text)
	assert.Equal(t, 1, native.calls)
	assert.Equal(t, 1, robust.calls)
}

func TestExtractPDFOCRUnavailable(t *testing.T) {
	native := &fakeBackend{name: "native", text: ""}
	robust := &fakeBackend{name: "robust", text: ""}
	runner := &fakeRunner{pages: 3}
	e := newTestExtractor(t, runner, missing("tesseract"), []PDFBackend{native}, []PDFBackend{robust})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindExtractionFailure))
	assert.Contains(t, err.Error(), "OCR backend unavailable")
	assert.Empty(t, res.Text)
	assert.False(t, res.UsedOCR)
	assert.Empty(t, runner.calls)
}

func TestExtractPDFOCRPageCap(t *testing.T) {
	native := &fakeBackend{name: "native"}
	robust := &fakeBackend{name: "robust"}
	runner := &fakeRunner{pages: 15}
	e := newTestExtractor(t, runner, allBinaries, []PDFBackend{native}, []PDFBackend{robust})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Pages)

	raster := runner.callsTo("pdftoppm")
	require.Len(t, raster, 1)
	args := strings.Join(raster[0].args, " ")
	assert.Contains(t, args, "-r 200")
	assert.Contains(t, args, "-f 1")
	assert.Contains(t, args, "-l 10")
	assert.Contains(t, args, "-png")

	ocr := runner.callsTo("tesseract")
	require.Len(t, ocr, 10)
	assert.Equal(t, "page-01.png", filepath.Base(ocr[0].args[0]))
	assert.Equal(t, "page-10.png", filepath.Base(ocr[9].args[0]))
	assert.NotContains(t, res.Text, "page-11.png")
}

func TestExtractPDFOCRPageFailureDegrades(t *testing.T) {
	runner := &fakeRunner{
		pages:    3,
		pageText: map[string]string{"page-01.png": "one", "page-03.png": "three"},
		pageErr:  map[string]bool{"page-02.png": true},
	}
	e := newTestExtractor(t, runner, allBinaries, []PDFBackend{&fakeBackend{name: "n"}}, []PDFBackend{&fakeBackend{name: "r"}})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, "one\n\nthree", res.Text)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "page 2")
}

func TestExtractPDFAllTiersExhausted(t *testing.T) {
	runner := &fakeRunner{
		pages:    2,
		pageText: map[string]string{"page-01.png": "  ", "page-02.png": "\n"},
	}
	native := &fakeBackend{name: "native", err: errors.New("malformed")}
	e := newTestExtractor(t, runner, allBinaries, []PDFBackend{native}, []PDFBackend{&fakeBackend{name: "r"}})

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindExtractionFailure))
	assert.Contains(t, err.Error(), "no text could be extracted")
	assert.Contains(t, err.Error(), "native: malformed")
	assert.Contains(t, err.Error(), "robust: no text")
	assert.Contains(t, err.Error(), "ocr: no text")
}

func TestExtractPDFRasterFailure(t *testing.T) {
	runner := &fakeRunner{rasterErr: errors.New("exit status 1")}
	e := newTestExtractor(t, runner, allBinaries, []PDFBackend{&fakeBackend{name: "n"}}, []PDFBackend{&fakeBackend{name: "r"}})

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4"), KindPDF)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindExtractionFailure))
	assert.Contains(t, err.Error(), "pdftoppm")
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	native := &fakeBackend{name: "native", text: "text"}
	e := newTestExtractor(t, &fakeRunner{}, allBinaries, []PDFBackend{native}, nil)

	_, err := e.Extract(ctx, []byte("%PDF-1.4"), KindPDF)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, native.calls)
}

func TestExtractCancelledBetweenTiers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	native := &cancellingBackend{cancel: cancel}
	robust := &fakeBackend{name: "robust", text: "late"}
	e := newTestExtractor(t, &fakeRunner{}, allBinaries, []PDFBackend{native}, []PDFBackend{robust})

	_, err := e.Extract(ctx, []byte("%PDF-1.4"), KindPDF)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, robust.calls)
}

type cancellingBackend struct {
	cancel context.CancelFunc
}

func (c *cancellingBackend) Name() string { return "cancelling" }

func (c *cancellingBackend) ExtractText(_ context.Context, _ []byte) (string, error) {
	c.cancel()
	return "", nil
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractImage(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestExtractor(t, runner, allBinaries, nil, nil)

	res, err := e.Extract(context.Background(), encodePNG(t), KindImage)
	require.NoError(t, err)
	assert.True(t, res.UsedOCR)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, KindImage, res.Kind)
	assert.Equal(t, TierNone, res.Tier)

	ocr := runner.callsTo("tesseract")
	require.Len(t, ocr, 1)
	assert.True(t, strings.HasSuffix(ocr[0].args[0], ".png"))
	assert.Equal(t, []string{"stdout", "-l", "eng"}, ocr[0].args[1:4])
	assert.Empty(t, runner.callsTo("pdftoppm"))
}

func TestExtractImageReencodesGIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))

	runner := &fakeRunner{}
	e := newTestExtractor(t, runner, allBinaries, nil, nil)

	_, err := e.Extract(context.Background(), buf.Bytes(), KindImage)
	require.NoError(t, err)
	ocr := runner.callsTo("tesseract")
	require.Len(t, ocr, 1)
	assert.True(t, strings.HasSuffix(ocr[0].args[0], ".png"))
}

func TestExtractImageFailures(t *testing.T) {
	t.Run("unrecognized bytes", func(t *testing.T) {
		e := newTestExtractor(t, &fakeRunner{}, allBinaries, nil, nil)
		_, err := e.Extract(context.Background(), []byte("not an image"), KindImage)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindExtractionFailure))
	})

	t.Run("tesseract missing", func(t *testing.T) {
		e := newTestExtractor(t, &fakeRunner{}, missing("tesseract"), nil, nil)
		_, err := e.Extract(context.Background(), encodePNG(t), KindImage)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindExtractionFailure))
		assert.Contains(t, err.Error(), "OCR backend unavailable")
	})

	t.Run("empty recognition", func(t *testing.T) {
		runner := &fakeRunner{pageText: map[string]string{}}
		e := newTestExtractor(t, &emptyOCR{runner}, allBinaries, nil, nil)
		_, err := e.Extract(context.Background(), encodePNG(t), KindImage)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OCR produced no text")
	})
}

// emptyOCR answers every tesseract call with whitespace
type emptyOCR struct{ *fakeRunner }

func (e *emptyOCR) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name == "tesseract" {
		return []byte(" \n "), nil, nil
	}
	return e.fakeRunner.Run(ctx, name, args...)
}

func TestExtractText(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{}, allBinaries, nil, nil)

	for _, kind := range []MediaKind{KindText, KindUnknown} {
		res, err := e.Extract(context.Background(), []byte("Payment upon acceptance\xff"), kind)
		require.NoError(t, err)
		assert.Equal(t, "Payment upon acceptance�", res.Text)
		assert.False(t, res.UsedOCR)
		assert.Equal(t, "text", res.Method)
		assert.Equal(t, kind, res.Kind)
	}
}

func TestLayoutBackend(t *testing.T) {
	runner := &fakeRunner{pdftotext: "Arbitration shall take place"}
	b := NewLayoutBackend("", t.TempDir(), runner)
	b.lookPath = allBinaries

	text, err := b.ExtractText(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "Arbitration shall take place", text)

	calls := runner.callsTo("pdftotext")
	require.Len(t, calls, 1)
	assert.Equal(t, "-layout", calls[0].args[0])
	assert.Equal(t, "-", calls[0].args[len(calls[0].args)-1])

	b.lookPath = missing("pdftotext")
	_, err = b.ExtractText(context.Background(), []byte("%PDF-1.4"))
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "pdftotext", be.Backend)
	assert.Equal(t, "lookup", be.Op)
}
