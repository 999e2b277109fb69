// Package textblock isolates one coherent block of text from a noisy
// occupancy grid. Recognized-text bounding boxes are rasterised into a
// coarse boolean grid; the cluster detector then grows a region from
// the centre outward and refines its boundaries against confirmed
// whitespace, so content from an adjacent page or column is ignored.
package textblock

import (
	"fmt"
	"sync"

	"github.com/lumen-access/waypoint/internal/guidance"
)

// Grid is a fixed-size boolean occupancy grid, row-major with origin
// top-left. Writers take the exclusive lock; debug visualization may
// read concurrently through Snapshot.
type Grid struct {
	mu    sync.RWMutex
	rows  int
	cols  int
	cells []bool
}

// NewGrid creates an empty rows x cols grid. Dimensions must be
// positive; anything else is a programming error and panics.
func NewGrid(rows, cols int) *Grid {
	if rows < 1 || cols < 1 {
		panic(fmt.Sprintf("textblock: invalid grid dimensions %dx%d", rows, cols))
	}
	return &Grid{rows: rows, cols: cols, cells: make([]bool, rows*cols)}
}

// Rows returns the number of grid rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of grid columns.
func (g *Grid) Cols() int { return g.cols }

// At reports the occupancy of the cell at (row, col). Out-of-range
// coordinates read as unoccupied.
func (g *Grid) At(row, col int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return false
	}
	return g.cells[row*g.cols+col]
}

// Set marks or clears a single cell. Out-of-range coordinates are
// ignored.
func (g *Grid) Set(row, col int, occupied bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return
	}
	g.cells[row*g.cols+col] = occupied
}

// MarkRect marks every cell covered by the normalized bounding box
// (origin bottom-left, per the detector framework convention). The
// box is flipped onto the grid's top-left row ordering.
func (g *Grid) MarkRect(r guidance.Rect) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rowTop := int((1 - r.MaxY) * float64(g.rows))
	rowBottom := int((1 - r.MinY) * float64(g.rows))
	colLeft := int(r.MinX * float64(g.cols))
	colRight := int(r.MaxX * float64(g.cols))

	rowTop = clampIndex(rowTop, g.rows)
	rowBottom = clampIndex(rowBottom, g.rows)
	colLeft = clampIndex(colLeft, g.cols)
	colRight = clampIndex(colRight, g.cols)

	for row := rowTop; row <= rowBottom; row++ {
		for col := colLeft; col <= colRight; col++ {
			g.cells[row*g.cols+col] = true
		}
	}
}

// Clear resets every cell. Called between recognition passes.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.cells {
		g.cells[i] = false
	}
}

// Occupied returns the number of marked cells.
func (g *Grid) Occupied() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, c := range g.cells {
		if c {
			n++
		}
	}
	return n
}

// Snapshot copies the grid into a row-major [][]bool for concurrent
// readers (cluster detection, debug heatmaps).
func (g *Grid) Snapshot() [][]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([][]bool, g.rows)
	for row := 0; row < g.rows; row++ {
		out[row] = make([]bool, g.cols)
		copy(out[row], g.cells[row*g.cols:(row+1)*g.cols])
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
