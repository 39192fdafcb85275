// Package ocr reads printed text from regions of a sheet using Tesseract.
//
// It wraps the Tesseract OCR engine (via gosseract/v2) and is used for the
// printed title in the header band of an aligned sheet. Handwriting is not
// supported.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//
// # Coordinates
//
// Regions are cropped and optionally upscaled in memory before recognition.
// Word bounds in the result are mapped back to the coordinates of the image
// that was passed in, so they can be drawn on the aligned sheet directly.
//
// # Error Handling
//
// ReadRegion returns an error for regions outside the image, unsupported
// languages and Tesseract failures. If word boxes cannot be extracted the
// full text is still returned with an empty Regions slice.
package ocr
