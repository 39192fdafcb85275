// Package sheetcode decodes the QR code printed in the header band of an
// answer sheet. The code usually carries a sheet or exam identifier.
package sheetcode

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/imaging"
	"github.com/ironsheep/omr-mcp/internal/sheet"
)

var (
	// ErrNoCode is returned when no readable QR code is found.
	ErrNoCode = errors.New("no QR code found")

	// ErrNoHeader is returned when the layout reserves no header band.
	ErrNoHeader = errors.New("layout has no header band")
)

// Code is a decoded QR payload.
type Code struct {
	Text string `json:"text"`

	// Points are the finder pattern centers in the coordinates of the
	// image that was searched.
	Points []geometry.Point `json:"points"`
}

// Decode searches the whole image for a QR code.
func Decode(img image.Image) (*Code, error) {
	if err := imaging.CheckImage(img); err != nil {
		return nil, err
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCode, err)
	}

	origin := img.Bounds().Min
	code := &Code{Text: result.GetText()}
	for _, p := range result.GetResultPoints() {
		code.Points = append(code.Points, geometry.Point{
			X: p.GetX() + float64(origin.X),
			Y: p.GetY() + float64(origin.Y),
		})
	}
	return code, nil
}

// DecodeRegion searches only r. Points are reported in img coordinates.
func DecodeRegion(img image.Image, r image.Rectangle) (*Code, error) {
	cropped, err := imaging.CropRegion(img, r, 1)
	if err != nil {
		return nil, err
	}
	code, err := Decode(cropped)
	if err != nil {
		return nil, err
	}
	for i := range code.Points {
		code.Points[i].X += float64(r.Min.X)
		code.Points[i].Y += float64(r.Min.Y)
	}
	return code, nil
}

// ReadHeader decodes the QR code in the header band of an aligned sheet.
func ReadHeader(aligned image.Image, l sheet.Layout) (*Code, error) {
	header := l.HeaderArea()
	if header.Empty() {
		return nil, ErrNoHeader
	}
	return DecodeRegion(aligned, header.Intersect(aligned.Bounds()))
}
