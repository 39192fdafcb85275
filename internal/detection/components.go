package detection

import (
	"image"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left pixel (inclusive) and (X2, Y2) the bottom-right
// corner (exclusive), matching image.Rectangle.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns X2 - X1.
func (b Bounds) Width() int { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

// Rect converts b to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle { return image.Rect(b.X1, b.Y1, b.X2, b.Y2) }

// pixel is an integer pixel index.
type pixel struct {
	X, Y int
}

// component is one 8-connected blob of foreground pixels.
type component struct {
	Area   int
	Bounds Bounds
	SumX   float64
	SumY   float64
}

// findComponents labels the 8-connected foreground regions of a mask
// stored row-major (width*height, true = foreground).
//
// Components smaller than minArea are dropped while scanning.
func findComponents(mask []bool, width, height, minArea int) []component {
	visited := make([]bool, len(mask))
	comps := make([]component, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if mask[i] && !visited[i] {
				c := floodFill(mask, visited, x, y, width, height)
				if c.Area >= minArea {
					comps = append(comps, c)
				}
			}
		}
	}
	return comps
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow on
// large regions. Marks visited pixels and accumulates area, bounds and the
// coordinate sums needed for the centroid. Uses 8-connectivity.
func floodFill(mask, visited []bool, startX, startY, width, height int) component {
	c := component{Bounds: Bounds{X1: startX, Y1: startY, X2: startX + 1, Y2: startY + 1}}
	stack := []pixel{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if visited[i] || !mask[i] {
			continue
		}
		visited[i] = true

		c.Area++
		c.SumX += float64(p.X) + 0.5
		c.SumY += float64(p.Y) + 0.5
		if p.X < c.Bounds.X1 {
			c.Bounds.X1 = p.X
		}
		if p.X+1 > c.Bounds.X2 {
			c.Bounds.X2 = p.X + 1
		}
		if p.Y < c.Bounds.Y1 {
			c.Bounds.Y1 = p.Y
		}
		if p.Y+1 > c.Bounds.Y2 {
			c.Bounds.Y2 = p.Y + 1
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, pixel{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return c
}
