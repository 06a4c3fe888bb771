package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/contract-guardian/internal/errors"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	pdfPath := write("contract.pdf", buildPDF("Net 30"))
	txtPath := write("terms.txt", []byte("Payment upon acceptance"))
	noExt := write("upload", []byte("%PDF-1.4\n%fake"))
	empty := write("empty.txt", nil)
	large := write("large.txt", make([]byte, 2048))

	t.Run("pdf by extension", func(t *testing.T) {
		data, kind, err := ReadFile(pdfPath, 0)
		require.NoError(t, err)
		assert.Equal(t, KindPDF, kind)
		assert.NotEmpty(t, data)
	})

	t.Run("text by extension", func(t *testing.T) {
		data, kind, err := ReadFile(txtPath, 0)
		require.NoError(t, err)
		assert.Equal(t, KindText, kind)
		assert.Equal(t, "Payment upon acceptance", string(data))
	})

	t.Run("sniffed pdf", func(t *testing.T) {
		_, kind, err := ReadFile(noExt, 0)
		require.NoError(t, err)
		assert.Equal(t, KindPDF, kind)
	})

	t.Run("too large", func(t *testing.T) {
		_, _, err := ReadFile(large, 1024)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindTooLarge))
		assert.Contains(t, err.Error(), "file too large")
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := ReadFile(empty, 0)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))
	})

	t.Run("directory", func(t *testing.T) {
		_, _, err := ReadFile(dir, 0)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := ReadFile(filepath.Join(dir, "nope.pdf"), 0)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))
	})
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, CheckSize(make([]byte, 10), 10))
	err := CheckSize(make([]byte, 11), 10)
	assert.True(t, apperrors.Is(err, apperrors.KindTooLarge))
	assert.NoError(t, CheckSize(make([]byte, 1024), 0))
}
