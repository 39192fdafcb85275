package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayCell is one answer cell as drawn by RenderOverlay.
type OverlayCell struct {
	Rect     image.Rectangle
	Question int
	Choice   int
	Marked   bool

	// Invalid is set on every cell of a question that did not resolve to
	// exactly one mark.
	Invalid bool
}

// OverlayOptions controls RenderOverlay colors and labels.
type OverlayOptions struct {
	// MarkedColor fills marked cells of valid questions. Hex "#RRGGBB".
	MarkedColor string
	// InvalidColor fills marked cells of invalid questions.
	InvalidColor string
	// OutlineColor outlines every cell.
	OutlineColor string
	// Opacity of the fill blend, 0..1.
	Opacity float64
	// Labels draws 1-based question numbers above each column.
	Labels bool
}

// DefaultOverlayOptions returns green marks, red conflicts and gray outlines.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		MarkedColor:  "#2ca02c",
		InvalidColor: "#d62728",
		OutlineColor: "#1f77b4",
		Opacity:      0.45,
		Labels:       true,
	}
}

// RenderOverlay draws the answer cells on top of img for human review.
//
// Fills are blended in Lab space so that the underlying pencil mark stays
// visible through the tint.
func RenderOverlay(img image.Image, cells []OverlayCell, opts OverlayOptions) (*image.RGBA, error) {
	marked, err := ParseHexColor(opts.MarkedColor)
	if err != nil {
		return nil, fmt.Errorf("marked color: %w", err)
	}
	invalid, err := ParseHexColor(opts.InvalidColor)
	if err != nil {
		return nil, fmt.Errorf("invalid color: %w", err)
	}
	outline, err := ParseHexColor(opts.OutlineColor)
	if err != nil {
		return nil, fmt.Errorf("outline color: %w", err)
	}
	opacity := opts.Opacity
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}

	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	labelled := make(map[int]bool)
	for _, cell := range cells {
		r := cell.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		if cell.Marked {
			tint := marked
			if cell.Invalid {
				tint = invalid
			}
			blendRect(result, r, tint, opacity)
		}
		strokeRect(result, r, outline)

		if opts.Labels && !labelled[cell.Question] {
			labelled[cell.Question] = true
			top := cell.Rect.Min.Y
			for _, other := range cells {
				if other.Question == cell.Question && other.Rect.Min.Y < top {
					top = other.Rect.Min.Y
				}
			}
			drawLabel(result, cell.Rect.Min.X+2, top-3, strconv.Itoa(cell.Question+1), outline)
		}
	}
	return result, nil
}

// ParseHexColor parses "#RRGGBB" into a colorful.Color.
func ParseHexColor(hex string) (colorful.Color, error) {
	if hex == "" {
		return colorful.Color{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return c, nil
}

func blendRect(img *image.RGBA, r image.Rectangle, tint colorful.Color, t float64) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			base, ok := colorful.MakeColor(img.RGBAAt(x, y))
			if !ok {
				continue
			}
			r8, g8, b8 := base.BlendLab(tint, t).Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{R: r8, G: g8, B: b8, A: 255})
		}
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, c colorful.Color) {
	r8, g8, b8 := c.RGB255()
	line := color.RGBA{R: r8, G: g8, B: b8, A: 255}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, line)
		img.SetRGBA(x, r.Max.Y-1, line)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, line)
		img.SetRGBA(r.Max.X-1, y, line)
	}
}

// drawLabel writes text with its baseline at y using the 7x13 basic font.
func drawLabel(img *image.RGBA, x, y int, text string, c colorful.Color) {
	r8, g8, b8 := c.RGB255()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: r8, G: g8, B: b8, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
