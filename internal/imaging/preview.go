package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Preview is an image ready to be embedded in HTML.
type Preview struct {
	Width    int
	Height   int
	MimeType string
	DataURI  string
}

// NewPreview encodes img for display. Images wider than maxWidth are resized
// to maxWidth keeping the aspect ratio; smaller ones are left alone.
//
// format selects the encoding ("jpeg" or "png"); anything else encodes PNG.
func NewPreview(img image.Image, format string, maxWidth int) (*Preview, error) {
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	enc, mime := imaging.PNG, "image/png"
	if format == "jpeg" {
		enc, mime = imaging.JPEG, "image/jpeg"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, enc, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &Preview{
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		MimeType: mime,
		DataURI:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
