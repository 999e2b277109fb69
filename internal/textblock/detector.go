package textblock

import (
	"math"

	"github.com/lumen-access/waypoint/internal/guidance"
)

// DetectorParams tunes the cluster detector. The diagonal angle set is
// a heuristic (step size x step count), configuration rather than an
// algorithmic invariant.
type DetectorParams struct {
	// BaseFillEmptyThreshold stops base region growth: a side keeps
	// growing while the adjacent row/column's emptiness ratio stays
	// below this. Tolerates inter-line gaps without breaking the
	// cluster.
	BaseFillEmptyThreshold float64

	// EmptyThreshold confirms genuine whitespace during boundary
	// refinement. Stricter than BaseFillEmptyThreshold.
	EmptyThreshold float64

	// StripSize is the width in cells of each refinement strip.
	StripSize int

	// AngleStepDeg and AngleSteps define the diagonal variants tried
	// for the left/right boundaries: +-(AngleStepDeg * 1..AngleSteps).
	AngleStepDeg float64
	AngleSteps   int
}

// DefaultDetectorParams returns the production tuning.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		BaseFillEmptyThreshold: 0.65,
		EmptyThreshold:         0.9,
		StripSize:              3,
		AngleStepDeg:           2.5,
		AngleSteps:             4,
	}
}

// Quad is a convex quadrilateral in normalized coordinates, origin
// bottom-left, corners clockwise from the top-left.
type Quad struct {
	TopLeft     guidance.Point
	TopRight    guidance.Point
	BottomRight guidance.Point
	BottomLeft  guidance.Point
}

// Contains reports whether p lies within the quad's bounding box. The
// quads produced here are near-axis-aligned, so the bounding-box test
// is what the reading flow uses to filter text regions.
func (q Quad) Contains(p guidance.Point) bool {
	minX := math.Min(q.TopLeft.X, q.BottomLeft.X)
	maxX := math.Max(q.TopRight.X, q.BottomRight.X)
	minY := math.Min(q.BottomLeft.Y, q.BottomRight.Y)
	maxY := math.Max(q.TopLeft.Y, q.TopRight.Y)
	return p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY
}

// ClusterDetector finds the single coherent block of occupied cells
// nearest the grid centre. It is constructed per detection pass over an
// immutable snapshot and consumed with one Detect call; nothing is
// persisted between passes.
type ClusterDetector struct {
	cells  [][]bool
	rows   int
	cols   int
	params DetectorParams
}

// NewClusterDetector snapshots the grid and prepares a single-use
// detector.
func NewClusterDetector(g *Grid, params DetectorParams) *ClusterDetector {
	return &ClusterDetector{
		cells:  g.Snapshot(),
		rows:   g.Rows(),
		cols:   g.Cols(),
		params: params,
	}
}

// boundary is one refined edge of the cluster: a grid-coordinate
// position plus the angle (radians from the perpendicular) of the
// whitespace gutter that confirmed it. Top/bottom boundaries are always
// straight.
type boundary struct {
	pos   int
	angle float64
}

// Detect runs the full pipeline: seed selection, base region growth,
// per-side boundary refinement and quad construction. It reports no
// detection only for an empty or zero-sized grid; otherwise the result
// is at worst bounded by the grid edges.
func (d *ClusterDetector) Detect() (Quad, bool) {
	if d.rows == 0 || d.cols == 0 {
		return Quad{}, false
	}

	seedRow, seedCol, ok := d.seed()
	if !ok {
		return Quad{}, false
	}

	top, bottom, left, right := d.growBase(seedRow, seedCol)

	topB := d.refineVertical(top, left, right, -1)
	bottomB := d.refineVertical(bottom, left, right, +1)
	leftB := d.refineHorizontal(left, topB.pos, bottomB.pos, -1)
	rightB := d.refineHorizontal(right, topB.pos, bottomB.pos, +1)

	return d.buildQuad(topB, bottomB, leftB, rightB), true
}

// seed returns the occupied cell nearest the grid's geometric centre.
func (d *ClusterDetector) seed() (row, col int, ok bool) {
	centreRow := float64(d.rows-1) / 2
	centreCol := float64(d.cols-1) / 2
	best := math.MaxFloat64

	for r := 0; r < d.rows; r++ {
		for c := 0; c < d.cols; c++ {
			if !d.cells[r][c] {
				continue
			}
			dist := math.Hypot(float64(r)-centreRow, float64(c)-centreCol)
			if dist < best {
				best = dist
				row, col = r, c
				ok = true
			}
		}
	}
	return row, col, ok
}

// growBase expands a rectangle outward from the seed. Each side keeps
// growing while the single adjacent row/column stays dense enough
// (emptiness below BaseFillEmptyThreshold); a genuinely content-free
// line stops that side.
func (d *ClusterDetector) growBase(seedRow, seedCol int) (top, bottom, left, right int) {
	top, bottom, left, right = seedRow, seedRow, seedCol, seedCol

	for {
		grew := false
		if top > 0 && d.rowEmptiness(top-1, left, right) < d.params.BaseFillEmptyThreshold {
			top--
			grew = true
		}
		if bottom < d.rows-1 && d.rowEmptiness(bottom+1, left, right) < d.params.BaseFillEmptyThreshold {
			bottom++
			grew = true
		}
		if left > 0 && d.colEmptiness(left-1, top, bottom) < d.params.BaseFillEmptyThreshold {
			left--
			grew = true
		}
		if right < d.cols-1 && d.colEmptiness(right+1, top, bottom) < d.params.BaseFillEmptyThreshold {
			right++
			grew = true
		}
		if !grew {
			return top, bottom, left, right
		}
	}
}

// rowEmptiness is the fraction of unoccupied cells in row across
// [colLo, colHi].
func (d *ClusterDetector) rowEmptiness(row, colLo, colHi int) float64 {
	empty, total := 0, 0
	for c := colLo; c <= colHi; c++ {
		total++
		if !d.occupied(row, c) {
			empty++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(empty) / float64(total)
}

// colEmptiness is the fraction of unoccupied cells in col across
// [rowLo, rowHi].
func (d *ClusterDetector) colEmptiness(col, rowLo, rowHi int) float64 {
	empty, total := 0, 0
	for r := rowLo; r <= rowHi; r++ {
		total++
		if !d.occupied(r, col) {
			empty++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(empty) / float64(total)
}

// occupied treats out-of-grid cells as empty: whatever lies beyond the
// frame cannot be page content.
func (d *ClusterDetector) occupied(row, col int) bool {
	if row < 0 || row >= d.rows || col < 0 || col >= d.cols {
		return false
	}
	return d.cells[row][col]
}

// refineVertical walks strips outward from the base rectangle's top or
// bottom edge (dir -1 grows upward, +1 downward) until one meets the
// strict EmptyThreshold. The boundary is the content-side edge of the
// qualifying strip; with no qualifying strip it falls back to the grid
// edge. Top/bottom boundaries are evaluated straight only: page skew
// mostly displaces the vertical edges.
func (d *ClusterDetector) refineVertical(edge, left, right, dir int) boundary {
	cur := edge
	for {
		next := cur + dir
		if next < 0 || next >= d.rows {
			// Grid edge fallback.
			if dir < 0 {
				return boundary{pos: 0}
			}
			return boundary{pos: d.rows - 1}
		}

		empty, total := 0, 0
		for s := 0; s < d.params.StripSize; s++ {
			row := next + dir*s
			for c := left; c <= right; c++ {
				total++
				if !d.occupied(row, c) {
					empty++
				}
			}
		}
		if float64(empty)/float64(total) >= d.params.EmptyThreshold {
			return boundary{pos: cur}
		}
		cur += dir * d.params.StripSize
		if cur < 0 {
			return boundary{pos: 0}
		}
		if cur >= d.rows {
			return boundary{pos: d.rows - 1}
		}
	}
}

// refineHorizontal refines the left (dir -1) or right (+1) boundary.
// Besides the straight vertical strip it evaluates the configured
// diagonal variants and keeps whichever orientation maximizes the
// emptiness ratio, accommodating skewed page content when hunting for
// the whitespace gutters.
func (d *ClusterDetector) refineHorizontal(edge, top, bottom, dir int) boundary {
	cur := edge
	for {
		next := cur + dir
		if next < 0 || next >= d.cols {
			if dir < 0 {
				return boundary{pos: 0}
			}
			return boundary{pos: d.cols - 1}
		}

		ratio, angle := d.bestStripEmptiness(next, top, bottom, dir)
		if ratio >= d.params.EmptyThreshold {
			return boundary{pos: cur, angle: angle}
		}
		cur += dir * d.params.StripSize
		if cur < 0 {
			return boundary{pos: 0}
		}
		if cur >= d.cols {
			return boundary{pos: d.cols - 1}
		}
	}
}

// bestStripEmptiness evaluates a vertical strip starting at col
// (extending outward in dir) straight and at every configured diagonal
// angle, returning the best emptiness ratio and the angle that achieved
// it.
func (d *ClusterDetector) bestStripEmptiness(col, top, bottom, dir int) (float64, float64) {
	bestRatio := -1.0
	bestAngle := 0.0
	midRow := float64(top+bottom) / 2

	// Straight first, then widening diagonals, keeping only strictly
	// better ratios: an unskewed gutter stays straight.
	steps := []int{0}
	for k := 1; k <= d.params.AngleSteps; k++ {
		steps = append(steps, k, -k)
	}

	for _, step := range steps {
		angle := float64(step) * d.params.AngleStepDeg * math.Pi / 180
		shiftPerRow := math.Tan(angle)

		empty, total := 0, 0
		for s := 0; s < d.params.StripSize; s++ {
			c := col + dir*s
			for r := top; r <= bottom; r++ {
				shifted := c + int(math.Round(shiftPerRow*(float64(r)-midRow)))
				total++
				if !d.occupied(r, shifted) {
					empty++
				}
			}
		}
		ratio := float64(empty) / float64(total)
		if ratio > bestRatio {
			bestRatio = ratio
			bestAngle = angle
		}
	}
	return bestRatio, bestAngle
}

// edgeLine is a boundary in normalized coordinates: horizontal lines
// are y = pos; near-vertical lines pass through (pos, anchorY) with
// x = pos + tan(angle)*(y - anchorY).
type edgeLine struct {
	horizontal bool
	pos        float64
	angle      float64
	anchorY    float64
}

// intersect returns the intersection of a horizontal and a
// near-vertical line, special-casing the fully vertical orientation.
func intersect(h, v edgeLine) guidance.Point {
	if v.angle == 0 {
		return guidance.Point{X: v.pos, Y: h.pos}
	}
	x := v.pos + math.Tan(v.angle)*(h.pos-v.anchorY)
	return guidance.Point{X: x, Y: h.pos}
}

// buildQuad converts the four grid-coordinate boundaries into
// normalized bottom-left-origin space (flipping the row axis) and
// intersects them pairwise into the final quad.
func (d *ClusterDetector) buildQuad(top, bottom, left, right boundary) Quad {
	rows := float64(d.rows)
	cols := float64(d.cols)

	// Cell-edge positions: a boundary row/col is inside the cluster, so
	// the quad runs along its outer edge.
	topLine := edgeLine{horizontal: true, pos: 1 - float64(top.pos)/rows}
	bottomLine := edgeLine{horizontal: true, pos: 1 - float64(bottom.pos+1)/rows}
	midY := (topLine.pos + bottomLine.pos) / 2

	leftLine := edgeLine{pos: float64(left.pos) / cols, angle: left.angle, anchorY: midY}
	rightLine := edgeLine{pos: float64(right.pos+1) / cols, angle: right.angle, anchorY: midY}

	return Quad{
		TopLeft:     intersect(topLine, leftLine),
		TopRight:    intersect(topLine, rightLine),
		BottomRight: intersect(bottomLine, rightLine),
		BottomLeft:  intersect(bottomLine, leftLine),
	}
}
