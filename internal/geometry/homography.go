// Package geometry maps a photographed sheet onto its canonical template
// frame using the four corner markers.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Errors returned by the alignment functions.
var (
	ErrSingularHomography = errors.New("homography is singular")
	ErrAmbiguousCorners   = errors.New("corner roles are ambiguous")
	ErrPointCount         = errors.New("exactly four point pairs are required")
)

// singularDet is the smallest |det(H)| accepted for an invertible transform.
const singularDet = 1e-9

// Point is a location in continuous pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Homography is a 3x3 projective transform stored row-major with H[8] == 1.
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps p through h.
func (h Homography) Apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Det returns the determinant of h.
func (h Homography) Det() float64 {
	return mat.Det(h.dense())
}

// Inverse returns the inverse transform normalized so that its last entry is 1.
func (h Homography) Inverse() (Homography, error) {
	if math.Abs(h.Det()) < singularDet {
		return Homography{}, ErrSingularHomography
	}
	var inv mat.Dense
	if err := inv.Inverse(h.dense()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingularHomography, err)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = inv.At(r, c)
		}
	}
	return out.normalized()
}

// Rows returns h as a 3x3 nested slice for JSON output.
func (h Homography) Rows() [][]float64 {
	return [][]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}
}

func (h Homography) dense() *mat.Dense {
	return mat.NewDense(3, 3, h[:])
}

func (h Homography) normalized() (Homography, error) {
	if math.Abs(h[8]) < 1e-12 {
		return Homography{}, ErrSingularHomography
	}
	s := h[8]
	for i := range h {
		h[i] /= s
	}
	return h, nil
}

// ComputeHomography returns the transform taking each src[i] to dst[i].
//
// The eight-unknown direct linear system is solved on Hartley-normalized
// points (centroid at origin, mean distance sqrt(2)) and denormalized
// afterwards. Degenerate point sets, such as three collinear points, give
// ErrSingularHomography.
func ComputeHomography(src, dst []Point) (Homography, error) {
	if len(src) != 4 || len(dst) != 4 {
		return Homography{}, fmt.Errorf("%w: got %d and %d", ErrPointCount, len(src), len(dst))
	}

	ts, ns, err := normalizePoints(src)
	if err != nil {
		return Homography{}, err
	}
	td, nd, err := normalizePoints(dst)
	if err != nil {
		return Homography{}, err
	}

	if collinearTriple(ns) || collinearTriple(nd) {
		return Homography{}, fmt.Errorf("%w: three points are collinear", ErrSingularHomography)
	}

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingularHomography, err)
	}

	hn := mat.NewDense(3, 3, []float64{
		sol.AtVec(0), sol.AtVec(1), sol.AtVec(2),
		sol.AtVec(3), sol.AtVec(4), sol.AtVec(5),
		sol.AtVec(6), sol.AtVec(7), 1,
	})

	// H = Td^-1 * Hn * Ts
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingularHomography, err)
	}
	var tmp, full mat.Dense
	tmp.Mul(hn, ts)
	full.Mul(&tdInv, &tmp)

	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[3*r+c] = full.At(r, c)
		}
	}
	h, err = h.normalized()
	if err != nil {
		return Homography{}, err
	}
	if d := h.Det(); math.IsNaN(d) || math.Abs(d) < singularDet {
		return Homography{}, fmt.Errorf("%w: det %.3g", ErrSingularHomography, d)
	}
	return h, nil
}

// normalizePoints returns the similarity transform T and the transformed
// points.
func normalizePoints(pts []Point) (*mat.Dense, []Point, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n
	if meanDist < 1e-12 {
		return nil, nil, fmt.Errorf("%w: coincident points", ErrSingularHomography)
	}

	s := math.Sqrt2 / meanDist
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	return t, out, nil
}

// collinearTriple reports whether any three of the normalized points are
// (numerically) on one line.
func collinearTriple(pts []Point) bool {
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				cross := (pts[j].X-pts[i].X)*(pts[k].Y-pts[i].Y) - (pts[j].Y-pts[i].Y)*(pts[k].X-pts[i].X)
				if math.Abs(cross) < 1e-9 {
					return true
				}
			}
		}
	}
	return false
}

// ReprojectionError returns the largest distance between h(src[i]) and dst[i].
func ReprojectionError(h Homography, src, dst []Point) float64 {
	var worst float64
	for i := range src {
		if i >= len(dst) {
			break
		}
		p := h.Apply(src[i])
		if d := math.Hypot(p.X-dst[i].X, p.Y-dst[i].Y); d > worst || math.IsNaN(d) {
			worst = d
		}
	}
	return worst
}
