package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ContentStreamBackend re-parses the document with pdfcpu in relaxed
// validation mode and reads text operators straight from each page's
// decoded content stream.
type ContentStreamBackend struct{}

// Name returns the backend name
func (ContentStreamBackend) Name() string { return "pdfcpu" }

// ExtractText returns the text shown on each page, pages separated by newlines.
// A page whose content cannot be decoded is skipped.
func (b ContentStreamBackend) ExtractText(ctx context.Context, data []byte) (string, error) {
	text, _, err := b.ExtractPages(ctx, data)
	return text, err
}

// ExtractPages is ExtractText that also reports the page count
func (b ContentStreamBackend) ExtractPages(ctx context.Context, data []byte) (text string, pages int, err error) {
	defer recoverBackend(b.Name(), "extract_text", &err)

	pctx, err := readContext(data)
	if err != nil {
		return "", 0, &BackendError{Backend: b.Name(), Op: "open", Err: err}
	}

	var sb strings.Builder
	for p := 1; p <= pctx.PageCount; p++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		r, perr := pdfcpu.ExtractPageContent(pctx, p)
		if perr != nil || r == nil {
			continue
		}
		raw, perr := io.ReadAll(r)
		if perr != nil {
			continue
		}
		pageText := contentStreamText(raw)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}
	return sb.String(), pctx.PageCount, nil
}

func readContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return pctx, nil
}
