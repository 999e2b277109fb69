// Package guidance implements the closed-loop position-prediction and
// feedback-directive engine: a conviction-based detection filter, a
// short-history linear extrapolator, and the two-phase centre-alignment
// policy that maps target positions to haptic/speech directives.
package guidance

import "math"

// Point is a position in normalized [0,1] image coordinates,
// origin bottom-left.
type Point struct {
	X float64
	Y float64
}

// Unknown is the sentinel for "no position available".
var Unknown = Point{X: -1, Y: -1}

// IsUnknown reports whether p is the sentinel position.
func (p Point) IsUnknown() bool { return p == Unknown }

// DistanceTo returns the Euclidean distance to q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is an axis-aligned normalized bounding box, origin bottom-left.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Centre returns the rectangle's midpoint.
func (r Rect) Centre() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Contains reports whether p lies inside the rectangle (inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clamp01 clamps into the normalized coordinate range.
func clamp01(v float64) float64 { return clamp(v, 0, 1) }
