package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/convolution"
)

// EdgeLevel marks an edge pixel in the output of DetectEdges; every other
// pixel is 0.
const EdgeLevel uint8 = 255

// EdgeOptions configures DetectEdges.
type EdgeOptions struct {
	// Low and High are the hysteresis thresholds on the Sobel gradient
	// magnitude of 0-255 intensities. Pixels above High are edges; pixels
	// between Low and High are edges when connected to one above High.
	Low  float64
	High float64

	// BlurRadius is the Gaussian radius applied before differentiation.
	// Zero disables the blur.
	BlurRadius float64
}

// DefaultEdgeOptions returns thresholds 50 and 150 with a light blur.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{Low: 50, High: 150, BlurRadius: 1}
}

// Gradient holds the Sobel derivatives of a grayscale image, row-major and
// zero-origin.
type Gradient struct {
	Width, Height int
	X, Y          []float64
}

// Magnitude returns the gradient length at index i.
func (g *Gradient) Magnitude(i int) float64 {
	return math.Hypot(g.X[i], g.Y[i])
}

// The Sobel kernels are scaled by 1/8 and biased by 128 so that the signed
// response of 8-bit input fits in the 0-255 range bild's convolution clamps
// to. sobelScale undoes the scaling.
const (
	sobelBias  = 128
	sobelScale = 8
)

// SobelGradient blurs gray by radius (when positive) and returns its
// horizontal and vertical Sobel derivatives.
func SobelGradient(gray *image.Gray, radius float64) *Gradient {
	src := compactGray(gray)
	if radius > 0 {
		src = redChannel(blur.Gaussian(src, radius), src.Bounds())
	}

	kx := &convolution.Kernel{
		Matrix: []float64{
			-1, 0, 1,
			-2, 0, 2,
			-1, 0, 1,
		},
		Width:  3,
		Height: 3,
	}
	for i := range kx.Matrix {
		kx.Matrix[i] /= sobelScale
	}
	ky := kx.Transposed()

	opts := &convolution.Options{Bias: sobelBias, Wrap: false, KeepAlpha: true}
	rx := convolution.Convolve(src, kx, opts)
	ry := convolution.Convolve(src, ky, opts)

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	g := &Gradient{Width: w, Height: h, X: make([]float64, w*h), Y: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			g.X[i] = float64(int(rx.Pix[rx.PixOffset(x, y)])-sobelBias) * sobelScale
			g.Y[i] = float64(int(ry.Pix[ry.PixOffset(x, y)])-sobelBias) * sobelScale
		}
	}
	return g
}

// DetectEdges finds edges with the Canny method and returns a zero-origin
// image where EdgeLevel marks edge pixels.
//
// # Algorithm
//
//  1. Gaussian blur and Sobel derivatives (SobelGradient)
//  2. Non-maximum suppression along the gradient direction, thinning
//     edges to one pixel
//  3. Hysteresis: strong pixels (>= High) seed edges that grow through
//     8-connected weak pixels (>= Low)
func DetectEdges(gray *image.Gray, opts EdgeOptions) *image.Gray {
	return CannyEdges(SobelGradient(gray, opts.BlurRadius), opts.Low, opts.High)
}

// CannyEdges runs non-maximum suppression and hysteresis on a gradient.
func CannyEdges(g *Gradient, low, high float64) *image.Gray {
	w, h := g.Width, g.Height
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return dst
	}

	mag := make([]float64, w*h)
	for i := range mag {
		mag[i] = g.Magnitude(i)
	}

	thin := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}
			var n1, n2 float64
			angle := math.Atan2(g.Y[i], g.X[i])
			switch a := math.Abs(angle); {
			case a < math.Pi/8 || a >= 7*math.Pi/8:
				n1, n2 = mag[i-1], mag[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = mag[i-w-1], mag[i+w+1]
			case a >= 3*math.Pi/8 && a < 5*math.Pi/8:
				n1, n2 = mag[i-w], mag[i+w]
			default:
				n1, n2 = mag[i-w+1], mag[i+w-1]
			}
			if m >= n1 && m >= n2 {
				thin[i] = m
			}
		}
	}

	stack := make([]int, 0)
	for i, m := range thin {
		if m >= high {
			dst.Pix[i] = EdgeLevel
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if dst.Pix[j] == 0 && thin[j] >= low {
					dst.Pix[j] = EdgeLevel
					stack = append(stack, j)
				}
			}
		}
	}
	return dst
}

// EdgeFraction returns the share of pixels marked as edges.
func EdgeFraction(edges *image.Gray) float64 {
	edges = compactGray(edges)
	if len(edges.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range edges.Pix {
		if v == EdgeLevel {
			n++
		}
	}
	return float64(n) / float64(len(edges.Pix))
}
