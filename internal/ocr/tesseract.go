package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text in a bitmap.
type Engine interface {
	// Recognize returns the raw recognized text.
	Recognize(ctx context.Context, img image.Image) (string, error)
	// Name returns the engine identifier.
	Name() string
}

// TesseractConfig holds configuration for the Tesseract engine.
type TesseractConfig struct {
	// Languages are Tesseract language codes. Defaults to ["eng"].
	Languages []string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	// Empty means the library default (TESSDATA_PREFIX or the install path).
	TessdataPrefix string

	// Variables are passed to Tesseract as-is, e.g. tessedit_char_whitelist.
	Variables map[string]string
}

// TesseractEngine implements Engine with libtesseract via gosseract.
type TesseractEngine struct {
	config        TesseractConfig
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine creates a Tesseract engine. No client is opened until
// the first Recognize call.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &TesseractEngine{
		config:        cfg,
		clientFactory: gosseract.NewClient,
	}
}

// Name returns the engine identifier.
func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs OCR on an in-memory image.
//
// The image is PNG-encoded in memory and handed to Tesseract as bytes; no
// temporary file is written. The returned text is exactly what Tesseract
// produced, including trailing newlines.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if e.config.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.config.TessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	if err := client.SetLanguage(e.config.Languages...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}

	for key, value := range e.config.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(key), value); err != nil {
			return "", fmt.Errorf("failed to set variable %s: %w", key, err)
		}
	}

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// Version returns the linked Tesseract version.
func (e *TesseractEngine) Version() string {
	client := e.clientFactory()
	defer client.Close()
	return client.Version()
}

// Info contains information about the OCR subsystem.
type Info struct {
	Available      bool     `json:"available"`
	Engine         string   `json:"engine"`
	Version        string   `json:"version,omitempty"`
	Languages      []string `json:"languages"`
	TessdataPrefix string   `json:"tessdata_prefix,omitempty"`
}

// Info reports the engine's configuration and whether libtesseract answered.
func (e *TesseractEngine) Info() Info {
	version := e.Version()
	return Info{
		Available:      version != "",
		Engine:         e.Name(),
		Version:        version,
		Languages:      e.config.Languages,
		TessdataPrefix: e.config.TessdataPrefix,
	}
}
