package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var errOCRUnavailable = errors.New("OCR backend unavailable")

type ocrEngine struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
}

// requireBinaries fails with errOCRUnavailable when any binary cannot be found
func (o *ocrEngine) requireBinaries(names ...string) error {
	for _, name := range names {
		if _, err := o.lookPath(name); err != nil {
			return fmt.Errorf("%w: %s: %v", errOCRUnavailable, name, err)
		}
	}
	return nil
}

// recognize runs tesseract on one image file and returns its raw output
func (o *ocrEngine) recognize(ctx context.Context, imgPath string) (string, error) {
	args := []string{imgPath, "stdout", "-l", o.cfg.TesseractLang}
	if o.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(o.cfg.PSM))
	}
	if o.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", o.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := o.runner.Run(ctx, o.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", filepath.Base(imgPath), err, truncateBytes(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

// pdf rasterizes at most MaxPages pages and recognizes each one. A page that
// fails recognition contributes an empty string and a warning.
func (o *ocrEngine) pdf(ctx context.Context, data []byte) (text string, pages int, warnings []string, err error) {
	if err := o.requireBinaries(o.cfg.Pdftoppm, o.cfg.Tesseract); err != nil {
		return "", 0, nil, err
	}

	tmpDir, err := os.MkdirTemp(o.cfg.TempDir, "cg-ocr-*")
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", 0, nil, fmt.Errorf("failed to stage document: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -f 1 -l <max> -png <in.pdf> <tmp/page>
	_, errb, err := o.runner.Run(ctx, o.cfg.Pdftoppm,
		"-r", strconv.Itoa(o.cfg.DPI),
		"-f", "1",
		"-l", strconv.Itoa(o.cfg.MaxPages),
		"-png", in, prefix)
	if err != nil {
		return "", 0, nil, fmt.Errorf("pdftoppm: %w: %s", err, truncateBytes(strings.TrimSpace(string(errb)), 512))
	}

	images := renderedPages(prefix)
	if len(images) > o.cfg.MaxPages {
		images = images[:o.cfg.MaxPages]
	}
	if len(images) == 0 {
		return "", 0, nil, fmt.Errorf("pdftoppm produced no images")
	}

	texts := make([]string, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", 0, warnings, err
		}
		txt, rerr := o.recognize(ctx, img)
		if rerr != nil {
			if ctx.Err() != nil {
				return "", 0, warnings, ctx.Err()
			}
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i+1, rerr))
			continue
		}
		texts[i] = normalizeOCR(txt)
	}
	return strings.Join(texts, "\n"), len(images), warnings, nil
}

// renderedPages lists prefix-N.png files in page order
func renderedPages(prefix string) []string {
	matches, _ := filepath.Glob(prefix + "-*.png")
	pageNum := func(p string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(p, prefix+"-"), ".png")
		n, err := strconv.Atoi(s)
		if err != nil {
			return 1 << 30
		}
		return n
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return pageNum(matches[i]) < pageNum(matches[j])
	})
	return matches
}
