package sheet

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func binaryImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	return img
}

func TestFillRatio(t *testing.T) {
	img := binaryImage(100, 100)
	draw.Draw(img, image.Rect(10, 10, 20, 15), image.NewUniform(color.Gray{Y: 0}), image.Point{}, draw.Src)

	tests := []struct {
		name string
		cell CellRegion
		want float64
	}{
		{"full", CellRegion{X: 10, Y: 10, W: 10, H: 5}, 1},
		{"half", CellRegion{X: 10, Y: 10, W: 10, H: 10}, 0.5},
		{"empty", CellRegion{X: 50, Y: 50, W: 10, H: 10}, 0},
		{"clipped", CellRegion{X: -10, Y: 10, W: 30, H: 5}, 0.5},
		{"outside", CellRegion{X: 200, Y: 200, W: 10, H: 10}, 0},
		{"zero size", CellRegion{X: 10, Y: 10, W: 0, H: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FillRatio(img, tt.cell); got != tt.want {
				t.Errorf("FillRatio: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsMarked_ThresholdMonotone(t *testing.T) {
	img := binaryImage(40, 40)
	draw.Draw(img, image.Rect(0, 0, 40, 12), image.NewUniform(color.Gray{Y: 0}), image.Point{}, draw.Src)
	cell := CellRegion{X: 0, Y: 0, W: 40, H: 40}

	prev := true
	for i := 0; i <= 20; i++ {
		threshold := float64(i) / 20
		got := IsMarked(img, cell, threshold)
		if got && !prev {
			t.Fatalf("threshold %.2f marked after a lower threshold did not", threshold)
		}
		prev = got
	}
	if !IsMarked(img, cell, 0.3) {
		t.Error("ratio 0.3 should reach threshold 0.3")
	}
	if IsMarked(img, cell, 0.31) {
		t.Error("ratio 0.3 should not reach threshold 0.31")
	}
}

func TestClassify(t *testing.T) {
	img := binaryImage(60, 20)
	draw.Draw(img, image.Rect(20, 0, 40, 10), image.NewUniform(color.Gray{Y: 0}), image.Point{}, draw.Src)

	cells := []CellRegion{
		{Question: 0, Choice: 0, X: 0, Y: 0, W: 20, H: 10},
		{Question: 0, Choice: 1, X: 0, Y: 10, W: 20, H: 10},
		{Question: 1, Choice: 0, X: 20, Y: 0, W: 20, H: 10},
		{Question: 1, Choice: 1, X: 20, Y: 10, W: 20, H: 10},
	}

	states, marked := Classify(img, cells, 2, 2, 0.15)
	if len(states) != 4 {
		t.Fatalf("expected 4 states, got %d", len(states))
	}
	if states[2].FillRatio != 1 || !states[2].Marked {
		t.Errorf("state 2: got %+v", states[2])
	}
	want := [][]bool{{false, false}, {true, false}}
	for q := range want {
		for c := range want[q] {
			if marked[q][c] != want[q][c] {
				t.Errorf("marked[%d][%d]: got %v, want %v", q, c, marked[q][c], want[q][c])
			}
		}
	}
}
