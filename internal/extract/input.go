package extract

import (
	"fmt"
	"os"

	apperrors "github.com/a3tai/contract-guardian/internal/errors"
)

// DefaultMaxBytes is the upload ceiling applied before extraction
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// ReadFile loads a document from disk, enforcing the size ceiling before the
// bytes are read, and detects its media kind from the name and leading bytes.
func ReadFile(path string, maxBytes int64) ([]byte, MediaKind, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, KindUnknown, apperrors.Wrap(apperrors.KindInvalidInput, "cannot access file", err).WithContext(path)
	}
	if info.IsDir() {
		return nil, KindUnknown, apperrors.New(apperrors.KindInvalidInput, "path is a directory").WithContext(path)
	}
	if info.Size() == 0 {
		return nil, KindUnknown, apperrors.New(apperrors.KindInvalidInput, "file is empty").WithContext(path)
	}
	if info.Size() > maxBytes {
		return nil, KindUnknown, apperrors.Newf(apperrors.KindTooLarge,
			"file too large: %d bytes (max: %d bytes)", info.Size(), maxBytes).WithContext(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, KindUnknown, apperrors.Wrap(apperrors.KindInvalidInput, "failed to read file", err).WithContext(path)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return data, DetectMediaKind("", path, head), nil
}

// CheckSize rejects in-memory uploads above the ceiling
func CheckSize(data []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return apperrors.New(apperrors.KindTooLarge,
			fmt.Sprintf("document too large: %d bytes (max: %d bytes)", len(data), maxBytes))
	}
	return nil
}
