package geometry

import (
	"image"
	"math"
)

// paperLevel fills destination pixels that map outside the source.
const paperLevel = 255

// WarpGray resamples src into a width x height image so that the
// destination pixel d takes the value of src at h^-1(d).
//
// Pixel centers sit at +0.5, sampling is bilinear and destination pixels
// whose preimage falls outside src are paper white.
func WarpGray(src *image.Gray, h Homography, width, height int) (*image.Gray, error) {
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width]
		for x := 0; x < width; x++ {
			p := inv.Apply(Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			row[x] = sampleBilinear(src, sb.Min, sw, sh, p.X-0.5, p.Y-0.5)
		}
	}
	return dst, nil
}

// sampleBilinear reads src at continuous index coordinates (fx, fy), where
// integer values land on pixel centers.
func sampleBilinear(src *image.Gray, origin image.Point, w, h int, fx, fy float64) uint8 {
	if math.IsNaN(fx) || math.IsNaN(fy) || fx < -0.5 || fy < -0.5 || fx > float64(w)-0.5 || fy > float64(h)-0.5 {
		return paperLevel
	}

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := fx - float64(x0)
	ay := fy - float64(y0)

	at := func(x, y int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return float64(src.Pix[src.PixOffset(origin.X+x, origin.Y+y)])
	}

	top := at(x0, y0)*(1-ax) + at(x0+1, y0)*ax
	bottom := at(x0, y0+1)*(1-ax) + at(x0+1, y0+1)*ax
	v := math.Round(top*(1-ay) + bottom*ay)
	if v < 0 {
		return 0
	} else if v > 255 {
		return 255
	}
	return uint8(v)
}
