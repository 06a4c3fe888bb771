package extract

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MediaKind is the declared kind of an uploaded document
type MediaKind string

const (
	KindPDF     MediaKind = "pdf"
	KindImage   MediaKind = "image"
	KindText    MediaKind = "text"
	KindUnknown MediaKind = "unknown"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// ParseMediaKind converts a user-supplied kind name. The empty string maps to KindUnknown.
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPDF:
		return KindPDF, nil
	case KindImage:
		return KindImage, nil
	case KindText:
		return KindText, nil
	case KindUnknown, "":
		return KindUnknown, nil
	default:
		return "", fmt.Errorf("invalid media kind %q (must be one of: pdf, image, text, unknown)", s)
	}
}

// DetectMediaKind infers the kind from an upload's content type and file name,
// sniffing the leading bytes when neither is conclusive.
func DetectMediaKind(contentType, filename string, head []byte) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		ct = parsed
	}
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case ct == "application/pdf" || ext == ".pdf":
		return KindPDF
	case strings.HasPrefix(ct, "image/") || imageExtensions[ext]:
		return KindImage
	case ct != "" && ct != "application/octet-stream":
		return KindText
	}

	if len(head) == 0 {
		return KindText
	}
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return KindPDF
	}
	sniffed := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		return KindImage
	case strings.HasPrefix(sniffed, "text/"):
		return KindText
	}
	if isTIFF(head) {
		return KindImage
	}
	return KindUnknown
}

func isTIFF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("II*\x00")) || bytes.HasPrefix(head, []byte("MM\x00*"))
}
