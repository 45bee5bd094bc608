package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFormat is returned for files outside the extension allow-list.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrEmptyUpload is returned when the uploaded file has no content.
	ErrEmptyUpload = errors.New("uploaded file is empty")
	// ErrImageTooLarge is returned when the image header declares more
	// pixels than the decode limit allows.
	ErrImageTooLarge = errors.New("image dimensions exceed the pixel limit")
)

// DefaultMaxPixels is the decode limit used by Decode, about 179 megapixels.
const DefaultMaxPixels int64 = 178956970

// AllowedExtensions lists the file extensions accepted for upload, in the
// form used by an <input accept> attribute.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

// Upload is a decoded image together with what the user sent.
type Upload struct {
	// ID uniquely identifies this upload; results computed from it are keyed by it.
	ID string

	// Filename is the base name reported by the client.
	Filename string

	// Format is "jpeg" or "png", derived from the extension.
	Format string

	// Size is the number of bytes received.
	Size int64

	// Image is the decoded bitmap.
	Image image.Image

	// Preview is the display copy. Decode leaves it nil; see NewPreview.
	Preview *Preview

	UploadedAt time.Time
}

// Width returns the image width in pixels.
func (u *Upload) Width() int { return u.Image.Bounds().Dx() }

// Height returns the image height in pixels.
func (u *Upload) Height() int { return u.Image.Bounds().Dy() }

// FormatFromFilename maps an upload name to its image format.
//
// Returns ErrUnsupportedFormat (wrapped with the offending extension) for
// anything other than .jpg, .jpeg or .png.
func FormatFromFilename(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", fmt.Errorf("%w: file has no extension", ErrUnsupportedFormat)
	}
	if !slices.Contains(AllowedExtensions, ext) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if ext == ".png" {
		return "png", nil
	}
	return "jpeg", nil
}

// Decode reads an uploaded file and decodes it into an Upload, refusing
// images larger than DefaultMaxPixels.
func Decode(r io.Reader, filename string) (*Upload, error) {
	return DecodeWithLimit(r, filename, DefaultMaxPixels)
}

// DecodeWithLimit is Decode with an explicit pixel limit. The extension is
// validated first so a disallowed file is rejected without being read, and
// the image header is checked against maxPixels before any pixel is
// allocated. A limit of zero or less disables the check. The returned Upload
// gets a fresh ID.
func DecodeWithLimit(r io.Reader, filename string, maxPixels int64) (*Upload, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if maxPixels > 0 && int64(hdr.Width)*int64(hdr.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d is more than %d pixels", ErrImageTooLarge, hdr.Width, hdr.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &Upload{
		ID:         uuid.NewString(),
		Filename:   filepath.Base(filename),
		Format:     format,
		Size:       int64(len(data)),
		Image:      img,
		UploadedAt: time.Now(),
	}, nil
}
