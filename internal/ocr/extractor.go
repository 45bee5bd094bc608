package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/ironsheep/perceptive-vision/internal/imaging"
)

const (
	// NoTextDetected is returned when recognition yields only whitespace.
	NoTextDetected = "No text detected in the image."
	// OCRFailed is returned in place of text when the engine fails.
	OCRFailed = "Error during OCR."
)

// Extraction is the result of one extraction run.
type Extraction struct {
	// Text is the recognized text, NoTextDetected, or OCRFailed.
	Text string

	// Err is the engine failure behind OCRFailed, nil otherwise.
	Err error

	// Duration covers preprocessing and recognition.
	Duration time.Duration
}

// Failed reports whether the engine failed.
func (x Extraction) Failed() bool { return x.Err != nil }

// Extractor runs preprocessing and recognition and applies the sentinel
// rules. It never returns an error to the caller.
type Extractor struct {
	engine Engine
	logger *slog.Logger
}

// NewExtractor wraps an engine.
func NewExtractor(engine Engine, logger *slog.Logger) *Extractor {
	return &Extractor{engine: engine, logger: logger}
}

// Engine returns the wrapped engine.
func (x *Extractor) Engine() Engine { return x.engine }

// Extract preprocesses img and recognizes its text.
func (x *Extractor) Extract(ctx context.Context, img image.Image) (result Extraction) {
	start := time.Now()
	defer func() {
		// cgo bindings can panic on malformed input; treat it like any other failure
		if r := recover(); r != nil {
			result = x.failed(fmt.Errorf("%s engine panicked: %v", x.engine.Name(), r))
		}
		result.Duration = time.Since(start)
	}()

	prepared := imaging.Preprocess(img)

	text, err := x.engine.Recognize(ctx, prepared)
	if err != nil {
		return x.failed(err)
	}

	if strings.TrimSpace(text) == "" {
		x.logger.Debug("no text detected", "engine", x.engine.Name())
		return Extraction{Text: NoTextDetected}
	}

	x.logger.Debug("text extracted",
		"engine", x.engine.Name(),
		"text_length", len(text),
	)
	return Extraction{Text: text}
}

func (x *Extractor) failed(err error) Extraction {
	x.logger.Warn("text extraction failed", "engine", x.engine.Name(), "error", err)
	return Extraction{Text: OCRFailed, Err: err}
}
