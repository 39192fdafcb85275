package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
)

const (
	// shadowBlurRadius gives a 5-tap Gaussian in bild's kernel sizing.
	shadowBlurRadius = 2.0

	// The background is estimated at 1/backgroundScale of the working
	// resolution. At that scale a radius 3 window (7x7) applied
	// backgroundIterations times spans what a 21x21 window applied three
	// times spans at full resolution.
	backgroundScale        = 4
	backgroundKernelRadius = 3.0
	backgroundIterations   = 3

	// equalizeClipLimit caps each histogram bin at this multiple of the
	// mean bin height before the equalization lookup table is built.
	equalizeClipLimit = 3.0
)

// RemoveShadows flattens uneven illumination in an image of a sheet.
//
// The image is converted to gray and smoothed, the paper background is
// estimated with a large morphological closing (dark ink and markers
// narrower than the window disappear, illumination gradients survive), the
// smoothed image is divided by that background and the quotient is contrast
// equalized. The result has the same dimensions as img and is always
// defined; RemoveShadows never fails.
func RemoveShadows(img image.Image) *image.Gray {
	gray := ToGray(img)
	if gray.Bounds().Empty() {
		return gray
	}

	smoothed := redChannel(blur.Gaussian(gray, shadowBlurRadius), gray.Bounds())
	background := EstimateBackground(smoothed)
	return Equalize(divide(smoothed, background))
}

// EstimateBackground returns the illumination estimate used by RemoveShadows.
//
// The image is reduced, edge-extended so that borders are not biased
// towards the padding, dilated and then eroded the same number of times,
// and scaled back up. Dark features narrower than the closing window
// disappear; smooth illumination gradients survive.
func EstimateBackground(gray *image.Gray) *image.Gray {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	sw := (w + backgroundScale - 1) / backgroundScale
	sh := (h + backgroundScale - 1) / backgroundScale
	small := imaging.Resize(gray, sw, sh, imaging.Box)

	pad := int(backgroundKernelRadius) * backgroundIterations
	work := clone.Pad(small, pad, pad, clone.EdgeExtend)
	for i := 0; i < backgroundIterations; i++ {
		work = effect.Dilate(work, backgroundKernelRadius)
	}
	for i := 0; i < backgroundIterations; i++ {
		work = effect.Erode(work, backgroundKernelRadius)
	}

	closed := redChannel(work, image.Rect(pad, pad, pad+sw, pad+sh))
	return ToGray(imaging.Resize(closed, w, h, imaging.Linear))
}

// divide computes 255*src/background per pixel, saturating at 255.
// A black background pixel yields black.
func divide(src, background *image.Gray) *image.Gray {
	dst := image.NewGray(src.Bounds())
	for i, s := range src.Pix {
		bg := background.Pix[i]
		if bg == 0 {
			continue
		}
		v := math.Round(255 * float64(s) / float64(bg))
		if v > 255 {
			v = 255
		}
		dst.Pix[i] = uint8(v)
	}
	return dst
}

// Equalize applies contrast-limited global histogram equalization.
//
// Bins higher than equalizeClipLimit times the mean are clipped and the
// excess is spread evenly over all levels, so an almost-binary page keeps
// its levels while a washed out capture is stretched. The mapping is
// monotone; level 0 maps to 0 and level 255 maps to 255.
func Equalize(gray *image.Gray) *image.Gray {
	gray = compactGray(gray)
	dst := image.NewGray(gray.Bounds())
	total := len(gray.Pix)
	if total == 0 {
		return dst
	}

	bins := histogram.NewRGBAHistogram(gray).R.Bins
	limit := int(equalizeClipLimit * float64(total) / 256)
	if limit < 1 {
		limit = 1
	}

	clipped := make([]float64, 256)
	excess := 0
	for i := 0; i < 256 && i < len(bins); i++ {
		c := bins[i]
		if c > limit {
			excess += c - limit
			c = limit
		}
		clipped[i] = float64(c)
	}
	share := float64(excess) / 256

	cdfMin := clipped[0] + share
	denom := float64(total) - cdfMin
	if denom <= 0 {
		copy(dst.Pix, gray.Pix)
		return dst
	}

	var lut [256]uint8
	cdf := 0.0
	for i := range clipped {
		cdf += clipped[i] + share
		v := math.Round(255 * (cdf - cdfMin) / denom)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}

	for i, v := range gray.Pix {
		dst.Pix[i] = lut[v]
	}
	return dst
}
