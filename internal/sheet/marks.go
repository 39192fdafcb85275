package sheet

import "image"

// inkCutoff is the level below which a binary pixel counts as ink.
const inkCutoff = 128

// FillRatio returns the fraction of ink pixels inside the cell box, after
// clipping it to the image. A box entirely outside the image has ratio 0.
func FillRatio(bin *image.Gray, cell CellRegion) float64 {
	r := cell.Rect().Add(bin.Bounds().Min).Intersect(bin.Bounds())
	if r.Empty() {
		return 0
	}

	ink := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := bin.Pix[bin.PixOffset(r.Min.X, y):bin.PixOffset(r.Max.X, y)]
		for _, v := range row {
			if v < inkCutoff {
				ink++
			}
		}
	}
	return float64(ink) / float64(r.Dx()*r.Dy())
}

// IsMarked reports whether the cell's fill ratio reaches threshold.
func IsMarked(bin *image.Gray, cell CellRegion, threshold float64) bool {
	return FillRatio(bin, cell) >= threshold
}

// MarkState is the classification of one cell.
type MarkState struct {
	Cell      CellRegion `json:"cell"`
	FillRatio float64    `json:"fill_ratio"`
	Marked    bool       `json:"marked"`
}

// Classify measures every cell and returns the states in input order along
// with the marked grid indexed [question][choice].
func Classify(bin *image.Gray, cells []CellRegion, questions, choices int, threshold float64) ([]MarkState, [][]bool) {
	marked := make([][]bool, questions)
	for q := range marked {
		marked[q] = make([]bool, choices)
	}

	states := make([]MarkState, len(cells))
	for i, cell := range cells {
		ratio := FillRatio(bin, cell)
		states[i] = MarkState{Cell: cell, FillRatio: ratio, Marked: ratio >= threshold}
		if cell.Question >= 0 && cell.Question < questions && cell.Choice >= 0 && cell.Choice < choices {
			marked[cell.Question][cell.Choice] = states[i].Marked
		}
	}
	return states, marked
}
