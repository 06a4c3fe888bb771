package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// formats tesseract may not read directly; they are re-encoded to PNG first
var reencodeFormats = map[string]bool{
	"webp": true,
	"gif":  true,
}

// recognizeImage identifies the image format, stages the bytes for tesseract and
// returns the normalized recognition output.
func (o *ocrEngine) recognizeImage(ctx context.Context, data []byte) (string, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("unrecognized image data: %w", err)
	}
	if err := o.requireBinaries(o.cfg.Tesseract); err != nil {
		return "", format, err
	}

	ext := "." + format
	if reencodeFormats[format] {
		data, err = toPNG(data)
		if err != nil {
			return "", format, err
		}
		ext = ".png"
	}

	path, cleanup, err := writeTemp(o.cfg.TempDir, "cg-img-*"+ext, data)
	if err != nil {
		return "", format, err
	}
	defer cleanup()

	txt, err := o.recognize(ctx, path)
	if err != nil {
		return "", format, err
	}
	return normalizeOCR(txt), format, nil
}

func toPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
