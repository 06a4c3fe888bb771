package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// LayoutBackend runs poppler's pdftotext in layout mode. A missing binary is
// reported as an ordinary backend error so the tier can fall through.
type LayoutBackend struct {
	Binary  string
	TempDir string

	runner   Runner
	lookPath func(string) (string, error)
}

// NewLayoutBackend returns a pdftotext backend using the given runner
func NewLayoutBackend(binary, tempDir string, runner Runner) *LayoutBackend {
	if binary == "" {
		binary = "pdftotext"
	}
	return &LayoutBackend{Binary: binary, TempDir: tempDir, runner: runner, lookPath: exec.LookPath}
}

// Name returns the backend name
func (b *LayoutBackend) Name() string { return "pdftotext" }

// ExtractText writes the document to a temporary file and returns pdftotext's output
func (b *LayoutBackend) ExtractText(ctx context.Context, data []byte) (string, error) {
	if _, err := b.lookPath(b.Binary); err != nil {
		return "", &BackendError{Backend: b.Name(), Op: "lookup", Err: err}
	}

	path, cleanup, err := writeTemp(b.TempDir, "cg-doc-*.pdf", data)
	if err != nil {
		return "", &BackendError{Backend: b.Name(), Op: "stage", Err: err}
	}
	defer cleanup()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := b.runner.Run(ctx, b.Binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", &BackendError{Backend: b.Name(), Op: "run", Err: fmt.Errorf("%w: %s", err, truncateBytes(string(errb), 512))}
	}
	return string(out), nil
}

// writeTemp stores data in a new file under dir (the system default when empty)
func writeTemp(dir, pattern string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
