// Package grid holds the 3-D cell grids exchanged between the thermal and
// reliability stages, and the rectangular footprints partitions occupy on
// them. Coordinates are metres; (0, 0) is the lower-left chip corner.
package grid

import "math"

// Rect is a rectangular footprint on one layer of the die stack.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Length float64
	Layer  int
}

// Center returns the footprint's centre point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Length/2
}

// Area returns width times length.
func (r Rect) Area() float64 {
	return r.Width * r.Length
}

// Contains reports whether (x, y) lies inside the footprint. The lower and
// left edges are inclusive, the upper and right edges exclusive, so that
// abutting footprints never both claim a point.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Length
}

// Overlap returns the area shared by two footprints on the same layer.
func (r Rect) Overlap(other Rect) float64 {
	if r.Layer != other.Layer {
		return 0
	}
	w := math.Min(r.X+r.Width, other.X+other.Width) - math.Max(r.X, other.X)
	l := math.Min(r.Y+r.Length, other.Y+other.Length) - math.Max(r.Y, other.Y)
	if w <= 0 || l <= 0 {
		return 0
	}
	return w * l
}

// Cell addresses one grid cell.
type Cell struct {
	Col   int
	Row   int
	Layer int
}

// Grid is a dense cols x rows x layers field of values. The zero Grid is
// empty.
type Grid struct {
	Cols       int
	Rows       int
	Layers     int
	CellWidth  float64
	CellLength float64
	Cells      []float64
}

// New returns a grid with every cell set to fill.
func New(cols, rows, layers int, cellWidth, cellLength, fill float64) Grid {
	if cols < 0 || rows < 0 || layers < 0 {
		return Grid{}
	}
	cells := make([]float64, cols*rows*layers)
	for idx := range cells {
		cells[idx] = fill
	}
	return Grid{
		Cols:       cols,
		Rows:       rows,
		Layers:     layers,
		CellWidth:  cellWidth,
		CellLength: cellLength,
		Cells:      cells,
	}
}

func (g Grid) Empty() bool {
	return len(g.Cells) == 0
}

// Index flattens a cell address. It does not bounds-check.
func (g Grid) Index(c Cell) int {
	return (c.Layer*g.Rows+c.Row)*g.Cols + c.Col
}

func (g Grid) Valid(c Cell) bool {
	return c.Col >= 0 && c.Col < g.Cols &&
		c.Row >= 0 && c.Row < g.Rows &&
		c.Layer >= 0 && c.Layer < g.Layers
}

func (g Grid) At(c Cell) float64 {
	return g.Cells[g.Index(c)]
}

func (g Grid) Set(c Cell, value float64) {
	g.Cells[g.Index(c)] = value
}

// CellAt maps a physical point on a layer to the cell containing it.
func (g Grid) CellAt(x, y float64, layer int) (Cell, bool) {
	if g.CellWidth <= 0 || g.CellLength <= 0 {
		return Cell{}, false
	}
	c := Cell{
		Col:   int(math.Floor(x / g.CellWidth)),
		Row:   int(math.Floor(y / g.CellLength)),
		Layer: layer,
	}
	return c, g.Valid(c)
}

// CellCenter returns the physical centre of a cell.
func (g Grid) CellCenter(c Cell) (float64, float64) {
	return (float64(c.Col) + 0.5) * g.CellWidth, (float64(c.Row) + 0.5) * g.CellLength
}

// CellRect returns the physical extent of a cell.
func (g Grid) CellRect(c Cell) Rect {
	return Rect{
		X:      float64(c.Col) * g.CellWidth,
		Y:      float64(c.Row) * g.CellLength,
		Width:  g.CellWidth,
		Length: g.CellLength,
		Layer:  c.Layer,
	}
}

// CellsWithin lists the cells on the footprint's layer whose centre lies
// inside the footprint.
func (g Grid) CellsWithin(r Rect) []Cell {
	if r.Layer < 0 || r.Layer >= g.Layers {
		return nil
	}
	cells := make([]Cell, 0)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			c := Cell{Col: col, Row: row, Layer: r.Layer}
			if r.Contains(g.CellCenter(c)) {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// SameShape reports whether both grids have identical dimensions.
func (g Grid) SameShape(other Grid) bool {
	return g.Cols == other.Cols && g.Rows == other.Rows && g.Layers == other.Layers
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := g
	out.Cells = make([]float64, len(g.Cells))
	copy(out.Cells, g.Cells)
	return out
}

// Min returns the smallest cell value, or NaN for an empty grid.
func (g Grid) Min() float64 {
	if g.Empty() {
		return math.NaN()
	}
	minimum := g.Cells[0]
	for _, v := range g.Cells[1:] {
		minimum = math.Min(minimum, v)
	}
	return minimum
}

// Max returns the largest cell value, or NaN for an empty grid.
func (g Grid) Max() float64 {
	if g.Empty() {
		return math.NaN()
	}
	maximum := g.Cells[0]
	for _, v := range g.Cells[1:] {
		maximum = math.Max(maximum, v)
	}
	return maximum
}
