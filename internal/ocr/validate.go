package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Decoders for the accepted formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Validate checks that data is a decodable image of a supported format no
// larger than maxBytes and returns its MIME type. maxBytes <= 0 selects
// DefaultMaxBytes.
func Validate(data []byte, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(data), maxBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrDecode)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	mime, ok := mimeTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return mime, nil
}
