package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ToGray returns a zero-origin grayscale copy of img.
//
// *image.Gray inputs are copied row by row; every other color model goes
// through bild's luminance conversion. The source image is never modified,
// so callers may keep using it after the call.
func ToGray(img image.Image) *image.Gray {
	src, ok := img.(*image.Gray)
	if !ok {
		rgba := effect.Grayscale(img)
		return redChannel(rgba, rgba.Bounds())
	}

	sb := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	for y := 0; y < sb.Dy(); y++ {
		i := src.PixOffset(sb.Min.X, sb.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+sb.Dx()], src.Pix[i:i+sb.Dx()])
	}
	return dst
}

// FitWorking shrinks img so that it fits inside maxWidth x maxHeight,
// preserving the aspect ratio. Images that already fit are returned as is.
//
// The returned scale is working size / source size (1 when untouched).
func FitWorking(img image.Image, maxWidth, maxHeight int) (image.Image, float64) {
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img, 1
	}
	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Box)
	return fitted, float64(fitted.Bounds().Dx()) / float64(b.Dx())
}

// redChannel copies the red channel of region r of src into a zero-origin
// gray image. bild operations return RGBA even for gray input, with R=G=B.
func redChannel(src *image.RGBA, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		si := src.PixOffset(r.Min.X, r.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < r.Dx(); x++ {
			dst.Pix[di+x] = src.Pix[si+4*x]
		}
	}
	return dst
}

// compactGray returns g itself when it is zero-origin with no row padding,
// otherwise a compact copy. Pixel loops over Pix rely on that layout.
func compactGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	if b.Min == (image.Point{}) && g.Stride == b.Dx() {
		return g
	}
	return ToGray(g)
}
