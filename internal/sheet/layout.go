// Package sheet maps the answer grid of an aligned sheet, classifies each
// cell as marked or empty and turns the marks into per-question answers.
//
// Questions run left to right as columns and choices run top to bottom as
// rows. Every function here is pure and deterministic.
package sheet

import (
	"errors"
	"fmt"
	"image"
)

// ErrLayout is wrapped by every layout validation error.
var ErrLayout = errors.New("invalid sheet layout")

// Layout describes the printed template in canonical pixels.
type Layout struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	Margin       int `json:"margin"`
	SquareSize   int `json:"alignment_square_size"`
	HeaderHeight int `json:"header_height"`
	Questions    int `json:"num_questions"`
	Choices      int `json:"choices_per_question"`
	Padding      int `json:"cell_padding"`
}

// CellRegion is the box sampled for one (question, choice) pair.
type CellRegion struct {
	Question int `json:"question"`
	Choice   int `json:"choice"`
	X        int `json:"x"`
	Y        int `json:"y"`
	W        int `json:"w"`
	H        int `json:"h"`
}

// Rect returns the region as an image.Rectangle.
func (c CellRegion) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H)
}

// GridArea returns the rectangle between the four markers, below the
// header band, that the answer cells divide.
func (l Layout) GridArea() image.Rectangle {
	inset := l.Margin + l.SquareSize
	// Built directly so that an inverted area keeps a negative size.
	return image.Rectangle{
		Min: image.Pt(inset, inset+l.HeaderHeight),
		Max: image.Pt(l.Width-inset, l.Height-inset),
	}
}

// HeaderArea returns the band reserved for the title and sheet code, or an
// empty rectangle when the layout has no header.
func (l Layout) HeaderArea() image.Rectangle {
	if l.HeaderHeight <= 0 {
		return image.Rectangle{}
	}
	inset := l.Margin + l.SquareSize
	return image.Rect(inset, inset, l.Width-inset, inset+l.HeaderHeight)
}

// Validate checks that the layout yields non-empty cells.
func (l Layout) Validate() error {
	switch {
	case l.Questions <= 0:
		return fmt.Errorf("%w: num_questions must be positive, got %d", ErrLayout, l.Questions)
	case l.Choices <= 0:
		return fmt.Errorf("%w: choices_per_question must be positive, got %d", ErrLayout, l.Choices)
	case l.Margin < 0:
		return fmt.Errorf("%w: margin must not be negative, got %d", ErrLayout, l.Margin)
	case l.SquareSize <= 0:
		return fmt.Errorf("%w: alignment_square_size must be positive, got %d", ErrLayout, l.SquareSize)
	case l.HeaderHeight < 0:
		return fmt.Errorf("%w: header_height must not be negative, got %d", ErrLayout, l.HeaderHeight)
	case l.Padding < 0:
		return fmt.Errorf("%w: cell_padding must not be negative, got %d", ErrLayout, l.Padding)
	}

	grid := l.GridArea()
	if grid.Dx() <= 0 || grid.Dy() <= 0 {
		return fmt.Errorf("%w: no room for the answer grid in a %dx%d template", ErrLayout, l.Width, l.Height)
	}
	cellW := grid.Dx()/l.Questions - 2*l.Padding
	cellH := grid.Dy()/l.Choices - 2*l.Padding
	if cellW <= 0 || cellH <= 0 {
		return fmt.Errorf("%w: %d questions x %d choices leave %dx%d pixel cells", ErrLayout, l.Questions, l.Choices, cellW, cellH)
	}
	return nil
}

// MapCells divides the grid area into Questions columns and Choices rows and
// returns one padded box per cell, ordered question-major.
//
// Column width and row height are the floor of the grid size divided by the
// count; leftover pixels are split between both sides of the grid.
func MapCells(l Layout) ([]CellRegion, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	grid := l.GridArea()
	colW := grid.Dx() / l.Questions
	rowH := grid.Dy() / l.Choices
	x0 := grid.Min.X + (grid.Dx()-colW*l.Questions)/2
	y0 := grid.Min.Y + (grid.Dy()-rowH*l.Choices)/2

	cells := make([]CellRegion, 0, l.Questions*l.Choices)
	for q := 0; q < l.Questions; q++ {
		for c := 0; c < l.Choices; c++ {
			cells = append(cells, CellRegion{
				Question: q,
				Choice:   c,
				X:        x0 + q*colW + l.Padding,
				Y:        y0 + c*rowH + l.Padding,
				W:        colW - 2*l.Padding,
				H:        rowH - 2*l.Padding,
			})
		}
	}
	return cells, nil
}

// CellBoundaries returns the unpadded column and row edges of the grid, for
// drawing the printed grid lines.
func CellBoundaries(l Layout) (xs, ys []int, err error) {
	if err := l.Validate(); err != nil {
		return nil, nil, err
	}
	grid := l.GridArea()
	colW := grid.Dx() / l.Questions
	rowH := grid.Dy() / l.Choices
	x0 := grid.Min.X + (grid.Dx()-colW*l.Questions)/2
	y0 := grid.Min.Y + (grid.Dy()-rowH*l.Choices)/2

	for q := 0; q <= l.Questions; q++ {
		xs = append(xs, x0+q*colW)
	}
	for c := 0; c <= l.Choices; c++ {
		ys = append(ys, y0+c*rowH)
	}
	return xs, ys, nil
}
