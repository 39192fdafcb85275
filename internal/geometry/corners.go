package geometry

import "fmt"

// Corner roles in the order used throughout the pipeline.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
)

// CornerNames labels the roles for logs and tool output.
var CornerNames = [4]string{"top_left", "top_right", "bottom_left", "bottom_right"}

// AssignCorners orders four points as TopLeft, TopRight, BottomLeft,
// BottomRight.
//
// The point with the smallest x+y is top-left and the largest is
// bottom-right; of the remaining two, the one further left is bottom-left.
// The ordering tolerates rotations up to about 45 degrees. Ties in any of
// the comparisons give ErrAmbiguousCorners.
func AssignCorners(pts []Point) ([4]Point, error) {
	var out [4]Point
	if len(pts) != 4 {
		return out, fmt.Errorf("%w: got %d points", ErrPointCount, len(pts))
	}

	tl, br := 0, 0
	for i, p := range pts {
		if p.X+p.Y < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if p.X+p.Y > pts[br].X+pts[br].Y {
			br = i
		}
	}
	for i, p := range pts {
		if i != tl && p.X+p.Y == pts[tl].X+pts[tl].Y {
			return out, fmt.Errorf("%w: two candidates for top-left", ErrAmbiguousCorners)
		}
		if i != br && p.X+p.Y == pts[br].X+pts[br].Y {
			return out, fmt.Errorf("%w: two candidates for bottom-right", ErrAmbiguousCorners)
		}
	}
	if tl == br {
		return out, fmt.Errorf("%w: degenerate point set", ErrAmbiguousCorners)
	}

	var rest []Point
	for i, p := range pts {
		if i != tl && i != br {
			rest = append(rest, p)
		}
	}
	if rest[0].X == rest[1].X {
		return out, fmt.Errorf("%w: off-diagonal corners share x", ErrAmbiguousCorners)
	}
	bl, tr := rest[0], rest[1]
	if bl.X > tr.X {
		bl, tr = tr, bl
	}

	out[TopLeft] = pts[tl]
	out[TopRight] = tr
	out[BottomLeft] = bl
	out[BottomRight] = pts[br]
	return out, nil
}

// CanonicalCorners returns the marker centers of a width x height template
// with the given outer margin and marker side, in AssignCorners order.
func CanonicalCorners(width, height, margin, square int) [4]Point {
	lo := float64(margin) + float64(square)/2
	right := float64(width) - lo
	bottom := float64(height) - lo
	return [4]Point{
		TopLeft:     {X: lo, Y: lo},
		TopRight:    {X: right, Y: lo},
		BottomLeft:  {X: lo, Y: bottom},
		BottomRight: {X: right, Y: bottom},
	}
}
