package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NativeBackend reads the document's own text layer with ledongthuc/pdf
type NativeBackend struct{}

// Name returns the backend name
func (NativeBackend) Name() string { return "ledongthuc" }

// ExtractText concatenates the plain text of every page, newline separated.
// Pages whose text cannot be decoded contribute nothing.
func (b NativeBackend) ExtractText(ctx context.Context, data []byte) (string, error) {
	text, _, err := b.ExtractPages(ctx, data)
	return text, err
}

// ExtractPages is ExtractText that also reports the page count
func (b NativeBackend) ExtractPages(ctx context.Context, data []byte) (text string, pages int, err error) {
	defer recoverBackend(b.Name(), "extract_text", &err)

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, &BackendError{Backend: b.Name(), Op: "open", Err: fmt.Errorf("failed to open PDF: %w", err)}
	}

	pages = r.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := pageText(page)
		if perr != nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(content)
	}
	return sb.String(), pages, nil
}

func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading page: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}
