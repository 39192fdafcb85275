package detection

import "testing"

func maskFromRows(rows []string) ([]bool, int, int) {
	h := len(rows)
	w := len(rows[0])
	mask := make([]bool, w*h)
	for y, row := range rows {
		for x, ch := range row {
			mask[y*w+x] = ch == '#'
		}
	}
	return mask, w, h
}

func TestFindComponents(t *testing.T) {
	mask, w, h := maskFromRows([]string{
		"##......",
		"##....#.",
		".....#..",
		"....#...",
		"........",
		"#......#",
	})

	comps := findComponents(mask, w, h, 1)
	if len(comps) != 4 {
		t.Fatalf("expected 4 components, got %d", len(comps))
	}

	first := comps[0]
	if first.Area != 4 {
		t.Errorf("first component area: got %d, want 4", first.Area)
	}
	if first.Bounds != (Bounds{X1: 0, Y1: 0, X2: 2, Y2: 2}) {
		t.Errorf("first component bounds: got %+v", first.Bounds)
	}
	if cx, cy := first.SumX/float64(first.Area), first.SumY/float64(first.Area); cx != 1 || cy != 1 {
		t.Errorf("first component centroid: got (%v,%v), want (1,1)", cx, cy)
	}

	// The diagonal run is one component under 8-connectivity.
	diag := comps[1]
	if diag.Area != 3 || diag.Bounds != (Bounds{X1: 4, Y1: 1, X2: 7, Y2: 4}) {
		t.Errorf("diagonal component: got area %d bounds %+v", diag.Area, diag.Bounds)
	}
}

func TestFindComponents_MinArea(t *testing.T) {
	mask, w, h := maskFromRows([]string{
		"###.#",
		"###..",
		"###..",
	})

	comps := findComponents(mask, w, h, 2)
	if len(comps) != 1 {
		t.Fatalf("expected 1 component above the area limit, got %d", len(comps))
	}
	if comps[0].Area != 9 {
		t.Errorf("area: got %d, want 9", comps[0].Area)
	}
}

func TestFindComponents_Empty(t *testing.T) {
	mask := make([]bool, 100)
	if comps := findComponents(mask, 10, 10, 1); len(comps) != 0 {
		t.Errorf("expected no components, got %d", len(comps))
	}
}

func TestBounds(t *testing.T) {
	b := Bounds{X1: 3, Y1: 4, X2: 10, Y2: 6}
	if b.Width() != 7 || b.Height() != 2 {
		t.Errorf("size: got %dx%d, want 7x2", b.Width(), b.Height())
	}
	if r := b.Rect(); r.Dx() != 7 || r.Min.X != 3 {
		t.Errorf("Rect: got %v", r)
	}
}
