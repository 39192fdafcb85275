package detection

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/omr-mcp/internal/geometry"
	"github.com/ironsheep/omr-mcp/internal/imaging"
)

// ErrInvalidRadius is returned by DetectCircles for an unusable radius range.
var ErrInvalidRadius = errors.New("invalid radius range")

// circleSectors is the number of angular sectors used to measure how much
// of a circumference is covered by edge pixels.
const circleSectors = 36

// Circle is a round outline, such as a printed answer bubble, found by
// DetectCircles.
type Circle struct {
	// Center is in continuous pixel coordinates (pixel centers at +0.5).
	Center geometry.Point `json:"center"`

	// Radius is the mean distance of the supporting edge pixels.
	Radius float64 `json:"radius"`

	// Votes is the accumulator score of the center.
	Votes int `json:"votes"`

	// Support is the fraction of the circumference, in 10 degree sectors,
	// that has an edge pixel at Radius.
	Support float64 `json:"support"`

	// FillRatio is the fraction of dark pixels inside 0.7 of the radius.
	FillRatio float64 `json:"fill_ratio"`
}

// CircleOptions configures DetectCircles.
type CircleOptions struct {
	// MinRadius and MaxRadius bound the radii searched, in pixels.
	MinRadius int
	MaxRadius int

	// MinDistance is the smallest distance between two reported centers.
	MinDistance float64

	// MinVotes is the accumulator score a center needs.
	MinVotes int

	// MinSupport is the smallest accepted Support.
	MinSupport float64

	// Edges configures the edge map the circles are found in.
	Edges imaging.EdgeOptions
}

// DefaultCircleOptions searches radii 10 to 100 with centers at least 20
// pixels apart.
func DefaultCircleOptions() CircleOptions {
	return CircleOptions{
		MinRadius:   10,
		MaxRadius:   100,
		MinDistance: 20,
		MinVotes:    30,
		MinSupport:  0.75,
		Edges:       imaging.DefaultEdgeOptions(),
	}
}

// DetectCircles finds circles in a grayscale image with a gradient Hough
// transform. Circles are returned top to bottom, then left to right.
//
// # Algorithm
//
//  1. Canny edges (imaging.DetectEdges)
//  2. Each edge pixel votes along its gradient direction, both ways, at
//     every radius from MinRadius to MaxRadius
//  3. Centers are local maxima of the 3x3 accumulator sum with at least
//     MinVotes, kept strongest first at least MinDistance apart
//  4. The radius is the 3 pixel distance band around the center holding
//     the most edge pixels; centers whose band covers less than MinSupport
//     of the circumference are dropped
//
// Squares and straight lines do not cover the circumference and are
// rejected by the support test.
func DetectCircles(gray *image.Gray, opts CircleOptions) ([]Circle, error) {
	if opts.MinRadius < 1 || opts.MaxRadius < opts.MinRadius {
		return nil, fmt.Errorf("%w: %d to %d", ErrInvalidRadius, opts.MinRadius, opts.MaxRadius)
	}
	origin := gray.Bounds().Min
	g := imaging.ToGray(gray)
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return []Circle{}, nil
	}

	grad := imaging.SobelGradient(g, opts.Edges.BlurRadius)
	edges := imaging.CannyEdges(grad, opts.Edges.Low, opts.Edges.High)

	acc := make([]int, w*h)
	points := make([]pixel, 0)
	for i, v := range edges.Pix {
		if v != imaging.EdgeLevel {
			continue
		}
		m := grad.Magnitude(i)
		if m == 0 {
			continue
		}
		x, y := i%w, i/w
		points = append(points, pixel{X: x, Y: y})
		ux, uy := grad.X[i]/m, grad.Y[i]/m
		for r := opts.MinRadius; r <= opts.MaxRadius; r++ {
			for _, s := range [2]float64{1, -1} {
				cx := int(math.Round(float64(x) + s*float64(r)*ux))
				cy := int(math.Round(float64(y) + s*float64(r)*uy))
				if cx >= 0 && cx < w && cy >= 0 && cy < h {
					acc[cy*w+cx]++
				}
			}
		}
	}

	score := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						sum += acc[ny*w+nx]
					}
				}
			}
			score[y*w+x] = sum
		}
	}

	peaks := make([]int, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if score[i] < opts.MinVotes || !localMax(score, w, h, x, y, 2) {
				continue
			}
			peaks = append(peaks, i)
		}
	}
	sort.SliceStable(peaks, func(a, b int) bool {
		return score[peaks[a]] > score[peaks[b]]
	})

	level := imaging.OtsuLevel(g)
	circles := make([]Circle, 0)
	for _, i := range peaks {
		center := refineCenter(acc, w, h, i%w, i/w)
		if tooClose(circles, center, opts.MinDistance) {
			continue
		}
		radius, support, ok := fitRadius(points, center, opts.MinRadius, opts.MaxRadius)
		if !ok || support < opts.MinSupport {
			continue
		}
		circles = append(circles, Circle{
			Center:    center,
			Radius:    radius,
			Votes:     score[i],
			Support:   support,
			FillRatio: diskFill(g, center, 0.7*radius, level),
		})
	}

	for i := range circles {
		circles[i].Center.X += float64(origin.X)
		circles[i].Center.Y += float64(origin.Y)
	}
	sort.Slice(circles, func(a, b int) bool {
		ca, cb := circles[a].Center, circles[b].Center
		if math.Abs(ca.Y-cb.Y) > circles[a].Radius {
			return ca.Y < cb.Y
		}
		return ca.X < cb.X
	})
	return circles, nil
}

// localMax reports whether no value within radius of (x, y) is larger.
func localMax(v []int, w, h, x, y, radius int) bool {
	c := v[y*w+x]
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			if v[ny*w+nx] > c {
				return false
			}
		}
	}
	return true
}

// refineCenter returns the vote-weighted centroid of the 3x3 window at
// (x, y) in continuous coordinates.
func refineCenter(acc []int, w, h, x, y int) geometry.Point {
	var sum, sx, sy float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			v := float64(acc[ny*w+nx])
			sum += v
			sx += v * (float64(nx) + 0.5)
			sy += v * (float64(ny) + 0.5)
		}
	}
	if sum == 0 {
		return geometry.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
	}
	return geometry.Point{X: sx / sum, Y: sy / sum}
}

func tooClose(circles []Circle, p geometry.Point, minDist float64) bool {
	for _, c := range circles {
		if math.Hypot(c.Center.X-p.X, c.Center.Y-p.Y) < minDist {
			return true
		}
	}
	return false
}

// fitRadius picks the 3 pixel distance band around center with the most
// edge pixels and returns their mean distance and sector coverage.
func fitRadius(points []pixel, center geometry.Point, minR, maxR int) (float64, float64, bool) {
	bins := make([]int, maxR+3)
	limit := float64(maxR + 2)
	for _, p := range points {
		d := math.Hypot(float64(p.X)+0.5-center.X, float64(p.Y)+0.5-center.Y)
		if d < limit {
			bins[int(d)]++
		}
	}

	best, bestCount := -1, 0
	for r := minR; r <= maxR; r++ {
		n := bins[r-1] + bins[r] + bins[r+1]
		if n > bestCount {
			best, bestCount = r, n
		}
	}
	if best < 0 {
		return 0, 0, false
	}

	lo, hi := float64(best-1), float64(best+2)
	var sum float64
	var sectors [circleSectors]bool
	for _, p := range points {
		dx, dy := float64(p.X)+0.5-center.X, float64(p.Y)+0.5-center.Y
		d := math.Hypot(dx, dy)
		if d < lo || d >= hi {
			continue
		}
		sum += d
		a := math.Atan2(dy, dx) + math.Pi
		s := int(a / (2 * math.Pi) * circleSectors)
		if s >= circleSectors {
			s = circleSectors - 1
		}
		sectors[s] = true
	}
	covered := 0
	for _, ok := range sectors {
		if ok {
			covered++
		}
	}
	return sum / float64(bestCount), float64(covered) / circleSectors, true
}

// diskFill returns the fraction of pixels within radius of center that are
// at or below level.
func diskFill(g *image.Gray, center geometry.Point, radius float64, level uint8) float64 {
	b := g.Bounds()
	x0 := int(math.Floor(center.X - radius))
	x1 := int(math.Ceil(center.X + radius))
	y0 := int(math.Floor(center.Y - radius))
	y1 := int(math.Ceil(center.Y + radius))

	total, dark := 0, 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if !(image.Point{X: x, Y: y}).In(b) {
				continue
			}
			if math.Hypot(float64(x)+0.5-center.X, float64(y)+0.5-center.Y) > radius {
				continue
			}
			total++
			if g.Pix[y*g.Stride+x] <= level {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}
