package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

func TestValidateFormats(t *testing.T) {
	encoders := map[string]func(*bytes.Buffer) error{
		"image/png":  func(b *bytes.Buffer) error { return png.Encode(b, testImage()) },
		"image/jpeg": func(b *bytes.Buffer) error { return jpeg.Encode(b, testImage(), nil) },
		"image/gif":  func(b *bytes.Buffer) error { return gif.Encode(b, testImage(), nil) },
		"image/bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, testImage()) },
		"image/tiff": func(b *bytes.Buffer) error { return tiff.Encode(b, testImage(), nil) },
	}
	for want, encode := range encoders {
		t.Run(want, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			got, err := Validate(buf.Bytes(), 0)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestValidateTooLarge(t *testing.T) {
	data := encodePNG(t)
	_, err := Validate(data, len(data)-1)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestValidateUnsupported(t *testing.T) {
	_, err := Validate([]byte("%PDF-1.7 not an image"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidateCorrupt(t *testing.T) {
	data := encodePNG(t)
	_, err := Validate(data[:12], 0)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Validate(nil, 0)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeQuestion, m)

	m, err = ParseMode("answer")
	require.NoError(t, err)
	assert.Equal(t, ModeAnswer, m)

	_, err = ParseMode("diagram")
	assert.Error(t, err)
}
