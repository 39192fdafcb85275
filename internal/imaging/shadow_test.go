package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// gradientSheet renders a paper ramp from 150 on the left to 250 on the
// right with dark square marks of side 20 at the given top-left corners.
func gradientSheet(width, height int, marks []image.Point) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := 150 + 100*float64(x)/float64(width-1)
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(v))})
		}
	}
	for _, m := range marks {
		for y := m.Y; y < m.Y+20; y++ {
			for x := m.X; x < m.X+20; x++ {
				img.SetGray(x, y, color.Gray{Y: 40})
			}
		}
	}
	return img
}

// backgroundStdDev measures pixels at least 20px from the border and 8px
// away from any mark.
func backgroundStdDev(img *image.Gray, marks []image.Point) float64 {
	b := img.Bounds()
	var sum, sumSq, n float64
	for y := b.Min.Y + 20; y < b.Max.Y-20; y++ {
		for x := b.Min.X + 20; x < b.Max.X-20; x++ {
			near := false
			for _, m := range marks {
				if x >= m.X-8 && x < m.X+28 && y >= m.Y-8 && y < m.Y+28 {
					near = true
					break
				}
			}
			if near {
				continue
			}
			v := float64(img.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / n
	return math.Sqrt(sumSq/n - mean*mean)
}

func TestRemoveShadows_FlattensGradient(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping morphology test in short mode")
	}
	marks := []image.Point{{60, 60}, {200, 150}, {320, 300}}
	src := gradientSheet(400, 400, marks)

	out := RemoveShadows(src)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds: got %v, want %v", out.Bounds(), src.Bounds())
	}

	before := backgroundStdDev(src, marks)
	after := backgroundStdDev(out, marks)
	if before < 20 {
		t.Fatalf("test image background stddev %.2f, expected a strong gradient", before)
	}
	if after >= before/4 {
		t.Errorf("background stddev: got %.2f after, %.2f before", after, before)
	}

	for _, m := range marks {
		c := out.GrayAt(m.X+10, m.Y+10).Y
		if c >= 128 {
			t.Errorf("mark at %v: center level %d, want dark", m, c)
		}
	}
}

func TestRemoveShadows_PreservesDimensions(t *testing.T) {
	src := createInMemoryImage(37, 23, color.RGBA{200, 180, 160, 255})
	out := RemoveShadows(src)
	if out.Bounds().Dx() != 37 || out.Bounds().Dy() != 23 {
		t.Errorf("dimensions: got %dx%d, want 37x23", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestEstimateBackground_TracksPaper(t *testing.T) {
	marks := []image.Point{{30, 30}}
	src := gradientSheet(120, 90, marks)
	bg := EstimateBackground(src)

	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			if int(bg.GrayAt(x, y).Y)+3 < int(src.GrayAt(x, y).Y) {
				t.Fatalf("background at (%d,%d) = %d below input %d", x, y, bg.GrayAt(x, y).Y, src.GrayAt(x, y).Y)
			}
		}
	}
	if v := bg.GrayAt(40, 40).Y; v < 150 {
		t.Errorf("mark not removed from background: level %d", v)
	}
}

func TestEqualize_Monotone(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 256, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 256; x++ {
			v := x
			if y > 1 {
				v = 128 + x/4
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}

	out := Equalize(img)
	prev := -1
	for x := 0; x < 256; x++ {
		v := int(out.GrayAt(x, 0).Y)
		if v < prev {
			t.Fatalf("mapping not monotone at level %d: %d after %d", x, v, prev)
		}
		prev = v
	}
	if out.GrayAt(255, 0).Y != 255 {
		t.Errorf("level 255 maps to %d, want 255", out.GrayAt(255, 0).Y)
	}
}

func TestEqualize_Uniform(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 77
	}
	out := Equalize(img)
	for i, v := range out.Pix {
		if v != out.Pix[0] {
			t.Fatalf("pixel %d: got %d, want %d like every other pixel", i, v, out.Pix[0])
		}
	}
}

func TestDivide_ZeroBackground(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	bg := image.NewGray(image.Rect(0, 0, 3, 1))
	copy(src.Pix, []uint8{100, 100, 200})
	copy(bg.Pix, []uint8{0, 200, 100})

	out := divide(src, bg)
	want := []uint8{0, 128, 255}
	for i, w := range want {
		if out.Pix[i] != w {
			t.Errorf("pixel %d: got %d, want %d", i, out.Pix[i], w)
		}
	}
}
