package detection

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"testing"

	"github.com/ironsheep/omr-mcp/internal/geometry"
)

// createWhiteImage creates a white grayscale test image.
func createWhiteImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func fillRect(img *image.Gray, r image.Rectangle, v uint8) {
	draw.Draw(img, r, image.NewUniform(color.Gray{Y: v}), image.Point{}, draw.Src)
}

// createMarkerSheet draws four 30px corner squares plus distractors that
// every filter should reject.
func createMarkerSheet() *image.Gray {
	img := createWhiteImage(400, 500)
	for _, p := range []image.Point{{20, 20}, {350, 20}, {20, 450}, {350, 450}} {
		fillRect(img, image.Rect(p.X, p.Y, p.X+30, p.Y+30), 0)
	}

	// Too small.
	fillRect(img, image.Rect(150, 100, 160, 110), 0)
	// Too elongated.
	fillRect(img, image.Rect(100, 200, 300, 215), 0)
	// Hollow ring.
	fillRect(img, image.Rect(150, 300, 210, 360), 0)
	fillRect(img, image.Rect(153, 303, 207, 357), 255)
	return img
}

func TestDetectMarkers(t *testing.T) {
	markers := DetectMarkers(createMarkerSheet(), DefaultMarkerOptions())
	if len(markers) != 4 {
		t.Fatalf("expected 4 markers, got %d: %+v", len(markers), markers)
	}

	want := []geometry.Point{{X: 35, Y: 35}, {X: 365, Y: 35}, {X: 35, Y: 465}, {X: 365, Y: 465}}
	for i, m := range markers {
		if m.Center != want[i] {
			t.Errorf("marker %d center: got %v, want %v", i, m.Center, want[i])
		}
		if m.Area != 900 {
			t.Errorf("marker %d area: got %d, want 900", i, m.Area)
		}
		if m.Side != 30 {
			t.Errorf("marker %d side: got %v, want 30", i, m.Side)
		}
		if m.Solidity != 1 {
			t.Errorf("marker %d solidity: got %v, want 1", i, m.Solidity)
		}
	}
}

func TestDetectMarkers_MinArea(t *testing.T) {
	opts := DefaultMarkerOptions()
	opts.MinArea = 1000

	if markers := DetectMarkers(createMarkerSheet(), opts); len(markers) != 0 {
		t.Errorf("expected no markers above 1000px, got %d", len(markers))
	}
}

func TestDetectMarkers_Blank(t *testing.T) {
	markers := DetectMarkers(createWhiteImage(100, 100), DefaultMarkerOptions())
	if len(markers) != 0 {
		t.Errorf("expected no markers on blank paper, got %d", len(markers))
	}
}

func TestDetectMarkers_SubImageOffset(t *testing.T) {
	sheet := createMarkerSheet()
	sub := sheet.SubImage(image.Rect(0, 0, 200, 250)).(*image.Gray)

	markers := DetectMarkers(sub, DefaultMarkerOptions())
	if len(markers) != 1 {
		t.Fatalf("expected 1 marker in the top-left quarter, got %d", len(markers))
	}
	if markers[0].Center != (geometry.Point{X: 35, Y: 35}) {
		t.Errorf("center: got %v", markers[0].Center)
	}
}

func marker(x, y float64, area int) Marker {
	return Marker{Center: geometry.Point{X: x, Y: y}, Area: area}
}

func TestSelectCorners(t *testing.T) {
	cands := []Marker{
		marker(400, 500, 1600), // a mark in the middle
		marker(60, 60, 1600),
		marker(740, 60, 1500),
		marker(120, 200, 3600), // a filled cell near the top-left
		marker(60, 940, 1700),
		marker(740, 940, 1600),
	}

	got, err := SelectCorners(cands, DefaultMarkerOptions())
	if err != nil {
		t.Fatalf("SelectCorners failed: %v", err)
	}
	want := [4]geometry.Point{{X: 60, Y: 60}, {X: 740, Y: 60}, {X: 60, Y: 940}, {X: 740, Y: 940}}
	for i := range want {
		if got[i].Center != want[i] {
			t.Errorf("%s: got %v, want %v", geometry.CornerNames[i], got[i].Center, want[i])
		}
	}
}

func TestSelectCorners_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cands   []Marker
		want    error
		message string
	}{
		{
			name:    "three markers",
			cands:   []Marker{marker(60, 60, 1600), marker(740, 60, 1600), marker(60, 940, 1600)},
			want:    ErrMarkersNotFound,
			message: "3 of 4 markers detected",
		},
		{
			name:  "none",
			cands: nil,
			want:  ErrMarkersNotFound,
		},
		{
			name: "empty quadrant",
			cands: []Marker{
				marker(60, 60, 1600), marker(70, 80, 1600),
				marker(740, 60, 1600), marker(60, 940, 1600),
			},
			want: ErrAmbiguousMarkers,
		},
		{
			name: "tie",
			cands: []Marker{
				marker(60, 60, 1600), marker(740, 60, 1600), marker(60, 940, 1600),
				marker(740, 900, 1600), marker(700, 940, 1600),
			},
			want: ErrAmbiguousMarkers,
		},
		{
			// Bottom-right marker covered: a square mark in the lower right
			// wins the quadrant, leaving another mark outside the frame.
			name: "mark taken for a corner",
			cands: []Marker{
				marker(60, 60, 1600), marker(740, 60, 1600), marker(60, 940, 1600),
				marker(496, 815, 1600),
				marker(688, 395, 1600),
				marker(240, 395, 1600),
			},
			want:    ErrAmbiguousMarkers,
			message: "(688, 395)",
		},
		{
			name: "candidate hugging a side",
			cands: []Marker{
				marker(60, 60, 1600), marker(740, 60, 1600),
				marker(60, 940, 1600), marker(740, 940, 1600),
				marker(400, 70, 1600),
			},
			want: ErrAmbiguousMarkers,
		},
		{
			name: "inconsistent sizes",
			cands: []Marker{
				marker(60, 60, 400), marker(740, 60, 1600),
				marker(60, 940, 1600), marker(740, 940, 1700),
			},
			want: ErrInconsistentMarkers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectCorners(tt.cands, DefaultMarkerOptions())
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q should mention %q", err, tt.message)
			}
		})
	}
}

func TestInsideDistance(t *testing.T) {
	corners := [4]Marker{
		geometry.TopLeft:     marker(0, 0, 0),
		geometry.TopRight:    marker(100, 0, 0),
		geometry.BottomLeft:  marker(0, 200, 0),
		geometry.BottomRight: marker(100, 200, 0),
	}

	tests := []struct {
		name string
		p    geometry.Point
		want float64
	}{
		{"center", geometry.Point{X: 50, Y: 100}, 50},
		{"near top", geometry.Point{X: 50, Y: 5}, 5},
		{"on right side", geometry.Point{X: 100, Y: 100}, 0},
		{"outside left", geometry.Point{X: -10, Y: 100}, -10},
		{"outside below", geometry.Point{X: 50, Y: 230}, -30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := insideDistance(corners, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCenters(t *testing.T) {
	pts := Centers([]Marker{marker(1, 2, 0), marker(3, 4, 0)})
	if len(pts) != 2 || pts[1] != (geometry.Point{X: 3, Y: 4}) {
		t.Errorf("got %v", pts)
	}
}
