package ocr

import (
	"context"
	"errors"
	"time"
)

// Language hints sent to every provider.
var LanguageHints = []string{"ko", "en"}

const (
	MethodTesseract = "tesseract"
	MethodGCV       = "gcv"
)

// ErrNoText is returned when a provider answers but recognizes nothing.
var ErrNoText = errors.New("ocr: no text recognized")

type Result struct {
	Text       string
	Method     string
	Language   string
	Confidence float32
	Duration   time.Duration
	Warnings   []string
}

// Extractor turns raw image bytes into recognized text.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (Result, error)
}
