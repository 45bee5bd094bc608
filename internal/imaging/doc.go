// Package imaging handles the uploaded image: validating and decoding the
// upload, producing a browser preview, and preparing a bitmap for OCR.
//
// # Uploads
//
// Only files named *.jpg, *.jpeg or *.png are accepted. The extension check is
// case-insensitive and happens before any decoding. Decoding goes through
// github.com/disintegration/imaging, so any codec registered with the image
// package can be read, but the declared format (taken from the extension)
// decides how the preview is re-encoded.
//
// Nothing in this package writes to disk. Uploads live in memory for as long
// as the caller keeps them.
//
// # Preprocessing
//
// Preprocess converts a bitmap to single-channel grayscale and stretches its
// contrast by ContrastFactor around the mean luminance:
//
//	out = clamp(trunc(mean + ContrastFactor*(in-mean)))
//
// where mean is the average luma rounded half up. This is the classic
// "blend with a flat gray image" contrast enhancement, and it is what the OCR
// engine sees. Output images are anchored at (0,0) regardless of the input's
// bounds.
//
// # Previews
//
// NewPreview downsizes wide images (Lanczos) and returns them as a base64
// data URI suitable for an <img src>.
package imaging
