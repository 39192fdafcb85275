package sheetcode

import (
	"errors"
	"image"
	"image/draw"
	"testing"

	"github.com/ironsheep/omr-mcp/internal/omr"
	"github.com/ironsheep/omr-mcp/internal/sheet"
	"github.com/ironsheep/omr-mcp/internal/sheettest"
)

func headerLayout() sheet.Layout {
	l := sheettest.DefaultLayout()
	l.HeaderHeight = 160
	return l
}

func TestDecode(t *testing.T) {
	qr, err := sheettest.QRCode("EXAM-2024-017", 150)
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	code, err := Decode(qr)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if code.Text != "EXAM-2024-017" {
		t.Errorf("got %q", code.Text)
	}
	if len(code.Points) < 3 {
		t.Errorf("expected at least 3 finder points, got %d", len(code.Points))
	}
}

func TestDecode_Blank(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	_, err := Decode(img)
	if !errors.Is(err, ErrNoCode) {
		t.Errorf("got %v, want ErrNoCode", err)
	}
}

func TestDecode_Empty(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestDecodeRegion_PointsInImageCoordinates(t *testing.T) {
	img, err := sheettest.Render(sheettest.Sheet{Layout: headerLayout(), Code: "SHEET-42"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	header := headerLayout().HeaderArea()

	code, err := DecodeRegion(img, header)
	if err != nil {
		t.Fatalf("DecodeRegion failed: %v", err)
	}
	if code.Text != "SHEET-42" {
		t.Errorf("got %q", code.Text)
	}
	// The symbol is drawn at the right end of the header.
	for _, p := range code.Points {
		if p.X < float64(header.Max.X-160) || p.X > float64(header.Max.X) ||
			p.Y < float64(header.Min.Y) || p.Y > float64(header.Max.Y) {
			t.Errorf("finder point %+v outside the printed symbol", p)
		}
	}
}

func TestDecodeRegion_OutOfBounds(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	if _, err := DecodeRegion(img, image.Rect(50, 50, 150, 150)); err == nil {
		t.Error("expected error for region outside image")
	}
}

func TestReadHeader_NoHeader(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 800, 1000))
	_, err := ReadHeader(img, sheettest.DefaultLayout())
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("got %v, want ErrNoHeader", err)
	}
}

func TestReadHeader_AfterAlignment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline run in short mode")
	}
	l := headerLayout()
	img, err := sheettest.Render(sheettest.Sheet{
		Layout: l,
		Marks:  sheettest.Answers(0, 1, 2, 3, 0, 1, 2, 3, 0, 1),
		Title:  "MIDTERM A",
		Code:   "MIDTERM-A-0007",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	cfg := omr.DefaultConfig()
	cfg.HeaderHeight = l.HeaderHeight
	cfg.RemoveShadows = false

	res := omr.Process(sheettest.Rotate(img, 5), cfg)
	if !res.Success {
		t.Fatalf("processing failed: %v", res.Err)
	}
	code, err := ReadHeader(res.Diagnostics.Aligned, cfg.Layout())
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if code.Text != "MIDTERM-A-0007" {
		t.Errorf("got %q", code.Text)
	}
}
