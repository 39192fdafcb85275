package detection

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/imaging"
)

// Errors returned by SelectCorners.
var (
	ErrMarkersNotFound     = errors.New("alignment markers not found")
	ErrAmbiguousMarkers    = errors.New("alignment markers are ambiguous")
	ErrInconsistentMarkers = errors.New("alignment markers differ in size")
)

// Marker is a dark, solid, roughly square blob that may be one of the four
// corner alignment squares.
type Marker struct {
	// Center is the centroid in continuous pixel coordinates (pixel
	// centers at +0.5).
	Center geometry.Point `json:"center"`

	// Side is the side of a square with the same area.
	Side float64 `json:"side"`

	// Area is the number of foreground pixels.
	Area int `json:"area"`

	// Bounds is the bounding box of the blob.
	Bounds Bounds `json:"bounds"`

	// Solidity is Area divided by the bounding box area.
	Solidity float64 `json:"solidity"`
}

// MarkerOptions configures DetectMarkers and SelectCorners.
type MarkerOptions struct {
	// MinArea is the smallest blob, in pixels, that can be a marker.
	MinArea int

	// MaxAreaFraction rejects blobs larger than this fraction of the image.
	MaxAreaFraction float64

	// MinAspect and MaxAspect bound the bounding box width/height ratio.
	MinAspect float64
	MaxAspect float64

	// MinSolidity is the smallest accepted Area / bounding box area.
	MinSolidity float64

	// CloseRadius is the radius of the morphological closing applied to the
	// foreground mask before labelling. Zero disables it.
	CloseRadius float64

	// MaxAreaRatio rejects a selected set whose largest marker is more than
	// this many times the area of the smallest.
	MaxAreaRatio float64
}

// DefaultMarkerOptions returns the filters used for printed sheets.
func DefaultMarkerOptions() MarkerOptions {
	return MarkerOptions{
		MinArea:         300,
		MaxAreaFraction: 0.05,
		MinAspect:       0.5,
		MaxAspect:       2.0,
		MinSolidity:     0.45,
		CloseRadius:     1,
		MaxAreaRatio:    4,
	}
}

// DetectMarkers returns every marker candidate in a grayscale sheet image,
// sorted top to bottom and then left to right.
//
// # Algorithm
//
//  1. Otsu threshold, dark pixels are foreground
//  2. Morphological closing of the foreground mask to fill speckle holes
//  3. 8-connected component labelling
//  4. Filtering by area, bounding box aspect ratio and solidity
//
// An image without any dark blob returns an empty slice.
func DetectMarkers(gray *image.Gray, opts MarkerOptions) []Marker {
	origin := gray.Bounds().Min
	g := imaging.ToGray(gray)
	width, height := g.Bounds().Dx(), g.Bounds().Dy()
	if width == 0 || height == 0 {
		return []Marker{}
	}

	level := imaging.OtsuLevel(g)
	mask := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v <= level {
			mask.Pix[i] = 255
		}
	}
	if opts.CloseRadius > 0 {
		closed := effect.Erode(effect.Dilate(mask, opts.CloseRadius), opts.CloseRadius)
		mask = imaging.ToGray(closed)
	}

	fg := make([]bool, len(mask.Pix))
	for i, v := range mask.Pix {
		fg[i] = v >= 128
	}

	minArea := opts.MinArea
	if minArea < 1 {
		minArea = 1
	}
	maxArea := opts.MaxAreaFraction * float64(width*height)

	markers := make([]Marker, 0)
	for _, c := range findComponents(fg, width, height, minArea) {
		if opts.MaxAreaFraction > 0 && float64(c.Area) > maxArea {
			continue
		}
		bw, bh := c.Bounds.Width(), c.Bounds.Height()
		aspect := float64(bw) / float64(bh)
		if aspect < opts.MinAspect || aspect > opts.MaxAspect {
			continue
		}
		solidity := float64(c.Area) / float64(bw*bh)
		if solidity < opts.MinSolidity {
			continue
		}

		markers = append(markers, Marker{
			Center: geometry.Point{
				X: c.SumX/float64(c.Area) + float64(origin.X),
				Y: c.SumY/float64(c.Area) + float64(origin.Y),
			},
			Side: math.Sqrt(float64(c.Area)),
			Area: c.Area,
			Bounds: Bounds{
				X1: c.Bounds.X1 + origin.X,
				Y1: c.Bounds.Y1 + origin.Y,
				X2: c.Bounds.X2 + origin.X,
				Y2: c.Bounds.Y2 + origin.Y,
			},
			Solidity: solidity,
		})
	}

	sort.Slice(markers, func(i, j int) bool {
		if markers[i].Center.Y != markers[j].Center.Y {
			return markers[i].Center.Y < markers[j].Center.Y
		}
		return markers[i].Center.X < markers[j].Center.X
	})
	return markers
}

// SelectCorners picks the four corner markers out of the candidates and
// returns them as top-left, top-right, bottom-left, bottom-right.
//
// The candidates' centers span an extent; each quadrant of that extent
// keeps the candidate closest to its outer corner. Too few candidates, an
// empty quadrant, two candidates equally close to a corner or a selection
// whose areas differ by more than MaxAreaRatio are errors.
//
// The printed markers enclose everything else on the sheet, so the
// selection is also rejected when any other candidate lies outside the
// quadrilateral of the four chosen centers, or closer to one of its sides
// than half a marker. This catches a covered marker whose quadrant was
// filled by a square answer mark.
func SelectCorners(cands []Marker, opts MarkerOptions) ([4]Marker, error) {
	var out [4]Marker
	if len(cands) < 4 {
		return out, fmt.Errorf("%w: %d of 4 markers detected", ErrMarkersNotFound, len(cands))
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, m := range cands {
		minX = math.Min(minX, m.Center.X)
		maxX = math.Max(maxX, m.Center.X)
		minY = math.Min(minY, m.Center.Y)
		maxY = math.Max(maxY, m.Center.Y)
	}
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	targets := [4]geometry.Point{
		geometry.TopLeft:     {X: minX, Y: minY},
		geometry.TopRight:    {X: maxX, Y: minY},
		geometry.BottomLeft:  {X: minX, Y: maxY},
		geometry.BottomRight: {X: maxX, Y: maxY},
	}

	best := [4]int{-1, -1, -1, -1}
	bestDist := [4]float64{}
	tied := [4]bool{}
	for i, m := range cands {
		q := geometry.TopLeft
		switch {
		case m.Center.X >= cx && m.Center.Y < cy:
			q = geometry.TopRight
		case m.Center.X < cx && m.Center.Y >= cy:
			q = geometry.BottomLeft
		case m.Center.X >= cx && m.Center.Y >= cy:
			q = geometry.BottomRight
		}

		d := math.Hypot(m.Center.X-targets[q].X, m.Center.Y-targets[q].Y)
		switch {
		case best[q] < 0 || d < bestDist[q]:
			best[q], bestDist[q], tied[q] = i, d, false
		case d == bestDist[q]:
			tied[q] = true
		}
	}

	for q := range best {
		if best[q] < 0 {
			return out, fmt.Errorf("%w: no candidate near the %s corner", ErrAmbiguousMarkers, geometry.CornerNames[q])
		}
		if tied[q] {
			return out, fmt.Errorf("%w: several candidates near the %s corner", ErrAmbiguousMarkers, geometry.CornerNames[q])
		}
		out[q] = cands[best[q]]
	}

	smallest, largest := out[0].Area, out[0].Area
	for _, m := range out[1:] {
		if m.Area < smallest {
			smallest = m.Area
		}
		if m.Area > largest {
			largest = m.Area
		}
	}
	if opts.MaxAreaRatio > 0 && float64(largest) > opts.MaxAreaRatio*float64(smallest) {
		return out, fmt.Errorf("%w: areas range from %d to %d pixels", ErrInconsistentMarkers, smallest, largest)
	}

	inset := math.Sqrt(float64(smallest)) / 2
	for i, m := range cands {
		if i == best[0] || i == best[1] || i == best[2] || i == best[3] {
			continue
		}
		if d := insideDistance(out, m.Center); d < inset {
			return out, fmt.Errorf("%w: candidate at (%.0f, %.0f) lies outside the selected corners",
				ErrAmbiguousMarkers, m.Center.X, m.Center.Y)
		}
	}
	return out, nil
}

// insideDistance returns the distance from p to the nearest side of the
// quadrilateral top-left, top-right, bottom-right, bottom-left. It is
// negative when p lies outside.
func insideDistance(corners [4]Marker, p geometry.Point) float64 {
	ring := [4]geometry.Point{
		corners[geometry.TopLeft].Center,
		corners[geometry.TopRight].Center,
		corners[geometry.BottomRight].Center,
		corners[geometry.BottomLeft].Center,
	}
	nearest := math.Inf(1)
	for i, a := range ring {
		b := ring[(i+1)%4]
		length := math.Hypot(b.X-a.X, b.Y-a.Y)
		if length == 0 {
			return math.Inf(-1)
		}
		// Positive on the inner side for a clockwise ring in image coordinates.
		d := ((b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)) / length
		nearest = math.Min(nearest, d)
	}
	return nearest
}

// Centers returns the marker centers in order.
func Centers(ms []Marker) []geometry.Point {
	pts := make([]geometry.Point, len(ms))
	for i, m := range ms {
		pts[i] = m.Center
	}
	return pts
}
