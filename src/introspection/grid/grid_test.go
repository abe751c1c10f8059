package grid

import (
	"math"
	"testing"
)

func TestCellAtAndCenter(t *testing.T) {
	g := New(4, 2, 1, 1e-3, 2e-3, 300)

	cell, ok := g.CellAt(2.6e-3, 3.9e-3, 0)
	if !ok {
		t.Fatalf("expected point inside grid")
	}
	if cell != (Cell{Col: 2, Row: 1, Layer: 0}) {
		t.Fatalf("unexpected cell %+v", cell)
	}

	x, y := g.CellCenter(cell)
	if math.Abs(x-2.5e-3) > 1e-12 || math.Abs(y-3e-3) > 1e-12 {
		t.Fatalf("unexpected centre (%g, %g)", x, y)
	}

	if _, ok := g.CellAt(5e-3, 0, 0); ok {
		t.Fatalf("point beyond the last column must not map to a cell")
	}
	if _, ok := g.CellAt(0, 0, 1); ok {
		t.Fatalf("missing layer must not map to a cell")
	}
}

func TestCellsWithinUsesCellCentres(t *testing.T) {
	g := New(4, 4, 2, 1, 1, 0)

	// Covers the centres of columns 0-1 (0.5, 1.5) but not column 2 (2.5).
	footprint := Rect{X: 0, Y: 0, Width: 2.4, Length: 1.0, Layer: 1}
	cells := g.CellsWithin(footprint)
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d (%+v)", len(cells), cells)
	}
	for _, c := range cells {
		if c.Layer != 1 || c.Row != 0 {
			t.Fatalf("unexpected cell %+v", c)
		}
	}

	if cells := g.CellsWithin(Rect{Width: 1, Length: 1, Layer: 3}); cells != nil {
		t.Fatalf("expected no cells on a missing layer, got %+v", cells)
	}
}

func TestRectOverlap(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 2, Length: 2}
	b := Rect{X: 1, Y: 1, Width: 2, Length: 2}
	if got := a.Overlap(b); got != 1 {
		t.Fatalf("overlap mismatch: want 1, got %g", got)
	}
	b.Layer = 1
	if got := a.Overlap(b); got != 0 {
		t.Fatalf("different layers must not overlap, got %g", got)
	}
	if got := a.Overlap(Rect{X: 2, Y: 0, Width: 1, Length: 1}); got != 0 {
		t.Fatalf("abutting rects must not overlap, got %g", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := New(2, 2, 1, 1, 1, 1)
	c := g.Clone()
	c.Set(Cell{Col: 1, Row: 1}, 0.5)

	if g.At(Cell{Col: 1, Row: 1}) != 1 {
		t.Fatalf("clone shares storage with original")
	}
	if c.Min() != 0.5 || c.Max() != 1 {
		t.Fatalf("unexpected min/max %g/%g", c.Min(), c.Max())
	}
	if !g.SameShape(c) {
		t.Fatalf("clone changed shape")
	}
	if !math.IsNaN(Grid{}.Min()) {
		t.Fatalf("empty grid min should be NaN")
	}
}
