package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/omr-mcp/internal/imaging"
)

// DefaultLanguage is used when Options.Language is empty.
const DefaultLanguage = "eng"

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion is one recognized word with its location and confidence.
type TextRegion struct {
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// Result contains the text read from one region.
type Result struct {
	// Text is the recognized text with surrounding whitespace trimmed.
	Text string `json:"text"`

	// Regions contains individual words. May be empty if bounding box
	// extraction fails.
	Regions []TextRegion `json:"regions"`
}

// Options configures ReadRegion.
type Options struct {
	// Language is the Tesseract language code, "eng" when empty.
	Language string

	// Scale enlarges the crop before recognition. Printed sheet titles are
	// often only 10-15 pixels tall after alignment and Tesseract reads them
	// much better at 2-3x. Zero or 1 keeps the size.
	Scale float64

	// SingleLine tells Tesseract to expect one line of text.
	SingleLine bool
}

// ReadRegion performs OCR on region r of img.
func ReadRegion(img image.Image, r image.Rectangle, opts Options) (*Result, error) {
	cropped, err := imaging.CropRegion(img, r, opts.Scale)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	mode := gosseract.PSM_SINGLE_BLOCK
	if opts.SingleLine {
		mode = gosseract.PSM_SINGLE_LINE
	}
	if err := client.SetPageSegMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	result := &Result{
		Text:    strings.TrimSpace(text),
		Regions: []TextRegion{},
	}

	// Return just text if boxes fail
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return result, nil
	}

	scale := effectiveScale(opts.Scale)
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		result.Regions = append(result.Regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     toSource(box.Box, r.Min, scale),
		})
	}
	return result, nil
}

func effectiveScale(scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	return scale
}

// toSource maps a box found in the scaled crop back to source coordinates.
func toSource(box image.Rectangle, origin image.Point, scale float64) Bounds {
	return Bounds{
		X1: origin.X + int(math.Floor(float64(box.Min.X)/scale)),
		Y1: origin.Y + int(math.Floor(float64(box.Min.Y)/scale)),
		X2: origin.X + int(math.Ceil(float64(box.Max.X)/scale)),
		Y2: origin.Y + int(math.Ceil(float64(box.Max.Y)/scale)),
	}
}
