// Package ocr extracts text from images using Tesseract.
//
// The package is split into an Engine, which does nothing but recognition,
// and an Extractor, which owns the user-facing contract around it:
//
//   - the image is preprocessed (grayscale, 2.0x contrast) before recognition;
//   - empty or whitespace-only output becomes NoTextDetected;
//   - recognized text is otherwise returned verbatim, never trimmed;
//   - an engine failure becomes OCRFailed, with the cause kept in
//     Extraction.Err for display.
//
// # Prerequisites
//
// TesseractEngine links against libtesseract through gosseract/v2 (cgo):
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Language data is looked up in the library's default location unless a
// tessdata prefix is configured. Nothing is hardcoded.
//
// # Languages
//
// The default language is English ("eng"). Several languages may be combined
// (e.g. "eng", "deu"); each needs its traineddata file installed.
//
// # Concurrency
//
// TesseractEngine creates a fresh gosseract client for every call, so one
// engine may be shared across goroutines.
package ocr
