// Package memgrid is an in-memory single-band raster used by tests and as
// the backing store for grids loaded from disk.
package memgrid

import (
	"math"

	"github.com/strataview/strataview/internal/raster"
)

// Grid is a row-major float64 grid anchored at its lower-left corner.
// NoData cells hold NaN.
type Grid struct {
	originX, originY float64 // lower-left corner of the extent
	cell             float64
	cols, rows       int
	data             []float64
}

var _ raster.Source = (*Grid)(nil)

// New allocates a cols x rows grid filled with nodata.
func New(originX, originY, cell float64, cols, rows int) *Grid {
	data := make([]float64, cols*rows)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{originX: originX, originY: originY, cell: cell, cols: cols, rows: rows, data: data}
}

// Set writes one cell. Row 0 is the southernmost row.
func (g *Grid) Set(col, row int, v float64) {
	g.data[row*g.cols+col] = v
}

// Fill sets every cell from a function of cell center coordinates.
func (g *Grid) Fill(f func(x, y float64) float64) {
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			x := g.originX + (float64(c)+0.5)*g.cell
			y := g.originY + (float64(r)+0.5)*g.cell
			g.Set(c, r, f(x, y))
		}
	}
}

func (g *Grid) Sample(x, y float64, band int) (float64, bool) {
	if band != 1 {
		return 0, false
	}
	col := int(math.Floor((x - g.originX) / g.cell))
	row := int(math.Floor((y - g.originY) / g.cell))
	if col < 0 || col >= g.cols || row < 0 || row >= g.rows {
		return 0, false
	}
	v := g.data[row*g.cols+col]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (g *Grid) Resolution() float64 { return g.cell }
func (g *Grid) Bands() int          { return 1 }
