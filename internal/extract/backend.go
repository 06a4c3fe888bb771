package extract

import (
	"context"
	"fmt"
)

// PDFBackend turns PDF bytes into text. Implementations return an empty
// string, not an error, when the document parses but carries no text layer.
type PDFBackend interface {
	Name() string
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// PagedBackend is implemented by backends that learn the page count while
// extracting, so the extractor does not parse the document a second time.
type PagedBackend interface {
	PDFBackend
	ExtractPages(ctx context.Context, data []byte) (text string, pages int, err error)
}

// BackendError records which backend failed and in which step
type BackendError struct {
	Backend string `json:"backend"`
	Op      string `json:"operation"`
	Err     error  `json:"error"`
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend error in %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// recoverBackend converts a panic inside a third-party parser into a BackendError
func recoverBackend(backend, op string, err *error) {
	if r := recover(); r != nil {
		*err = &BackendError{Backend: backend, Op: op, Err: fmt.Errorf("panic: %v", r)}
	}
}
