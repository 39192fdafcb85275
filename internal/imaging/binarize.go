package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/histogram"
)

// Pixel levels of a binary sheet image.
const (
	MarkLevel       uint8 = 0
	BackgroundLevel uint8 = 255
)

// ThresholdMode selects how Binarize picks the cutoff for each pixel.
type ThresholdMode int

const (
	// ModeGlobal compares every pixel against one fixed level.
	ModeGlobal ThresholdMode = iota
	// ModeAdaptive compares every pixel against its blurred neighborhood.
	ModeAdaptive
)

// String returns the mode name used in tool arguments and logs.
func (m ThresholdMode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModeAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// BinarizeOptions configures Binarize.
type BinarizeOptions struct {
	// Mode selects global or adaptive thresholding.
	Mode ThresholdMode

	// Level is the global cutoff: pixels strictly above it become background.
	Level uint8

	// BlockRadius is the half-size of the adaptive mean window in pixels.
	// Windows should be wider than a filled mark so mark interiors stay dark.
	BlockRadius int

	// Offset is subtracted from the local mean before comparing.
	Offset int
}

// DefaultBinarizeOptions returns global thresholding at 200 with adaptive
// parameters tuned for cells a few dozen pixels wide.
func DefaultBinarizeOptions() BinarizeOptions {
	return BinarizeOptions{
		Mode:        ModeGlobal,
		Level:       200,
		BlockRadius: 25,
		Offset:      10,
	}
}

// Binarize converts a grayscale sheet into a two-level image where
// MarkLevel marks ink and BackgroundLevel marks paper. It never fails.
func Binarize(gray *image.Gray, opts BinarizeOptions) *image.Gray {
	gray = compactGray(gray)
	if opts.Mode == ModeAdaptive {
		return adaptiveThreshold(gray, opts.BlockRadius, opts.Offset)
	}
	return globalThreshold(gray, opts.Level)
}

// globalThreshold maps v > level to background. It works on the raw gray
// levels; segment.Threshold ranks pixels through float luminance weights,
// which can move a pixel sitting exactly on the cutoff.
func globalThreshold(gray *image.Gray, level uint8) *image.Gray {
	dst := image.NewGray(gray.Bounds())
	for i, v := range gray.Pix {
		if v > level {
			dst.Pix[i] = BackgroundLevel
		}
	}
	return dst
}

func adaptiveThreshold(gray *image.Gray, radius, offset int) *image.Gray {
	if radius < 1 {
		radius = 1
	}
	pre := redChannel(blur.Gaussian(gray, shadowBlurRadius), gray.Bounds())
	mean := boxMean(pre, radius)

	dst := image.NewGray(gray.Bounds())
	for i, v := range pre.Pix {
		if int(v) > int(mean.Pix[i])-offset {
			dst.Pix[i] = BackgroundLevel
		}
	}
	return dst
}

// boxMean is a separable box filter. bild's blur.Box convolves with the full
// square kernel, which is too slow for windows this wide.
func boxMean(gray *image.Gray, radius int) *image.Gray {
	length := 2*radius + 1
	k := convolution.NewKernel(length, 1)
	for i := range k.Matrix {
		k.Matrix[i] = 1
	}
	row := k.Normalized()
	opts := &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: false}

	horizontal := convolution.Convolve(gray, row, opts)
	both := convolution.Convolve(horizontal, row.Transposed(), opts)
	return redChannel(both, both.Bounds())
}

// OtsuLevel returns the level that best separates dark ink from paper.
//
// Pixels <= level form the dark class. When several levels tie (a purely
// two-valued image) the middle of the tied range is returned.
func OtsuLevel(gray *image.Gray) uint8 {
	bins := histogram.NewRGBAHistogram(gray).R.Bins

	total := 0
	sumAll := 0.0
	for i, c := range bins {
		total += c
		sumAll += float64(i * c)
	}
	if total == 0 {
		return 127
	}

	var (
		weightDark int
		sumDark    float64
		best       = -1.0
		first      int
		last       int
	)
	for t := 0; t < len(bins)-1; t++ {
		weightDark += bins[t]
		if weightDark == 0 {
			continue
		}
		weightLight := total - weightDark
		if weightLight == 0 {
			break
		}
		sumDark += float64(t * bins[t])

		meanDark := sumDark / float64(weightDark)
		meanLight := (sumAll - sumDark) / float64(weightLight)
		between := float64(weightDark) * float64(weightLight) * (meanDark - meanLight) * (meanDark - meanLight)

		switch {
		case between > best:
			best, first, last = between, t, t
		case between == best:
			last = t
		}
	}
	if best < 0 {
		return 127
	}
	return uint8((first + last) / 2)
}
