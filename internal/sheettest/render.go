// Package sheettest renders synthetic answer sheets for tests: the printed
// template, filled marks, rotation and uneven lighting.
package sheettest

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/omr-mcp/internal/sheet"
)

// Printed levels.
const (
	Ink       uint8 = 0
	Paper     uint8 = 255
	GridLevel uint8 = 215
)

// Sheet describes what to draw.
type Sheet struct {
	Layout sheet.Layout

	// Marks lists the filled choices per question.
	Marks map[int][]int

	// MarkWidth and MarkHeight are the filled fraction of a padded cell in
	// each direction. Zero means 0.7 and 0.4.
	MarkWidth  float64
	MarkHeight float64

	// GridLines draws the unpadded cell boundaries in GridLevel.
	GridLines bool

	// Bubbles outlines every padded cell with a printed circle of
	// BubbleRadius.
	Bubbles bool

	// Title is printed at the left of the header band.
	Title string

	// Code is encoded as a QR code at the right of the header band.
	Code string
}

// DefaultLayout is the 800x1000 template with 10 questions of 4 choices.
func DefaultLayout() sheet.Layout {
	return sheet.Layout{
		Width:      800,
		Height:     1000,
		Margin:     40,
		SquareSize: 40,
		Questions:  10,
		Choices:    4,
		Padding:    3,
	}
}

// Answers builds a Marks map with one mark per question.
func Answers(choices ...int) map[int][]int {
	m := make(map[int][]int, len(choices))
	for q, c := range choices {
		if c >= 0 {
			m[q] = []int{c}
		}
	}
	return m
}

// Render draws s on white paper.
func Render(s Sheet) (*image.Gray, error) {
	l := s.Layout
	cells, err := sheet.MapCells(l)
	if err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, l.Width, l.Height))
	fill(img, img.Bounds(), Paper)

	sq := l.SquareSize
	for _, p := range []image.Point{
		{l.Margin, l.Margin},
		{l.Width - l.Margin - sq, l.Margin},
		{l.Margin, l.Height - l.Margin - sq},
		{l.Width - l.Margin - sq, l.Height - l.Margin - sq},
	} {
		fill(img, image.Rect(p.X, p.Y, p.X+sq, p.Y+sq), Ink)
	}

	if s.GridLines {
		xs, ys, err := sheet.CellBoundaries(l)
		if err != nil {
			return nil, err
		}
		for _, x := range xs {
			fill(img, image.Rect(x, ys[0], x+1, ys[len(ys)-1]), GridLevel)
		}
		for _, y := range ys {
			fill(img, image.Rect(xs[0], y, xs[len(xs)-1], y+1), GridLevel)
		}
	}

	if s.Bubbles {
		for _, c := range cells {
			Circle(img, float64(c.X)+float64(c.W)/2, float64(c.Y)+float64(c.H)/2, BubbleRadius(c.W, c.H), 2, Ink)
		}
	}

	mw, mh := s.MarkWidth, s.MarkHeight
	if mw <= 0 {
		mw = 0.7
	}
	if mh <= 0 {
		mh = 0.4
	}
	for _, c := range cells {
		if !contains(s.Marks[c.Question], c.Choice) {
			continue
		}
		w := int(float64(c.W) * mw)
		h := int(float64(c.H) * mh)
		x := c.X + (c.W-w)/2
		y := c.Y + (c.H-h)/2
		fill(img, image.Rect(x, y, x+w, y+h), Ink)
	}

	header := l.HeaderArea()
	if s.Title != "" && !header.Empty() {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Gray{Y: Ink}),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(header.Min.X+10, header.Min.Y+header.Dy()/2+5),
		}
		d.DrawString(s.Title)
	}
	if s.Code != "" && !header.Empty() {
		side := header.Dy() - 10
		qr, err := QRCode(s.Code, side)
		if err != nil {
			return nil, err
		}
		at := image.Pt(header.Max.X-side-5, header.Min.Y+5)
		draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(qr.Bounds().Size())}, qr, image.Point{}, draw.Src)
	}
	return img, nil
}

// BubbleRadius is the outer radius of the bubble printed in a w x h cell.
func BubbleRadius(w, h int) float64 {
	side := w
	if h < side {
		side = h
	}
	return float64(side)/2 - 2
}

// Circle draws a ring of outer radius r and the given thickness centered
// at (cx, cy). A thickness of zero or less fills the disk.
func Circle(img *image.Gray, cx, cy, r, thickness float64, v uint8) {
	inner := r - thickness
	if thickness <= 0 {
		inner = -1
	}
	b := img.Bounds().Intersect(image.Rect(int(cx-r)-1, int(cy-r)-1, int(cx+r)+2, int(cy+r)+2))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if d <= r && d > inner {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
}

// QRCode renders text as a side x side QR symbol with a quiet zone.
func QRCode(text string, side int) (*image.Gray, error) {
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_MARGIN: 2,
	}
	bits, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, side, side, hints)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	img := image.NewGray(image.Rect(0, 0, bits.GetWidth(), bits.GetHeight()))
	for y := 0; y < bits.GetHeight(); y++ {
		for x := 0; x < bits.GetWidth(); x++ {
			if bits.Get(x, y) {
				img.Pix[y*img.Stride+x] = Ink
			} else {
				img.Pix[y*img.Stride+x] = Paper
			}
		}
	}
	return img, nil
}

// Rotate turns img clockwise by degrees around its center, growing the
// canvas to fit and filling the uncovered corners with paper.
func Rotate(img image.Image, degrees float64) *image.Gray {
	rotated := transform.Rotate(img, degrees, &transform.RotationOptions{ResizeBounds: true})
	b := rotated.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	composed := imaging.Overlay(bg, rotated, image.Pt(0, 0), 1.0)
	return toGray(composed)
}

// Shade multiplies every pixel by a gain that ramps linearly from left at
// the first column to right at the last.
func Shade(img *image.Gray, left, right float64) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t := float64(x-b.Min.X) / float64(b.Dx()-1)
			gain := left + (right-left)*t
			out.SetGray(x, y, color.Gray{Y: uint8(float64(img.GrayAt(x, y).Y)*gain + 0.5)})
		}
	}
	return out
}

// WritePNG saves img in a per-test temporary directory and returns the path.
func WritePNG(tb testing.TB, img image.Image, name string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		tb.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func fill(img *image.Gray, r image.Rectangle, v uint8) {
	draw.Draw(img, r, image.NewUniform(color.Gray{Y: v}), image.Point{}, draw.Src)
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
