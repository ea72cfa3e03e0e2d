// Package ocr turns photos of wrong questions into text. Two backends are
// provided: Google Cloud Vision document text detection and a vision-capable
// LLM.
package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Mode selects what part of the photo to read.
type Mode string

const (
	ModeQuestion Mode = "question"
	ModeAnswer   Mode = "answer"
)

// DefaultMaxBytes is the largest image accepted by Validate when no limit
// is configured.
const DefaultMaxBytes = 20 << 20

var (
	ErrImageTooLarge      = errors.New("image exceeds size limit")
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrDecode             = errors.New("image could not be decoded")
	ErrServiceUnavailable = errors.New("text extraction service unavailable")
)

// Extractor reads text from an image.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte, mode Mode) (string, error)
}

// ParseMode maps a request string to a Mode. Empty means ModeQuestion.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeQuestion:
		return ModeQuestion, nil
	case ModeAnswer:
		return ModeAnswer, nil
	default:
		return "", fmt.Errorf("unknown extraction mode %q", s)
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}
