package guidance

import (
	"gonum.org/v1/gonum/stat"

	"github.com/lumen-access/waypoint/internal/ringbuf"
)

// historyDepth is the number of samples kept for extrapolation. Three
// samples is the minimum that lets the regression distinguish motion
// from jitter while staying responsive to direction changes.
const historyDepth = 3

// Params is the immutable per-session tuning for prediction and
// alignment. It is configuration, not runtime state.
type Params struct {
	Centre                Point   // alignment target, usually the frame centre
	CentreRadius          float64 // half-width of the "aligned" band on each axis
	ConvictionMax         int     // conviction ceiling
	ConvictionInOnDetect  int     // added on a positive detection
	ConvictionOutNoDetect int     // removed on a miss
	SmoothingAlpha        float64 // EMA weight of the newest detection
}

// Predictor holds per-session detection state: the conviction
// accumulator, the smoothed position estimate, and the parallel
// position/frame-index history used for one-step-ahead extrapolation.
//
// Conviction updates are caller-driven: the session adds or removes
// conviction as batches arrive and must call ClampConviction after
// every mutation. The predictor does not clamp on its own.
type Predictor struct {
	params Params

	conviction int
	smooth     Point
	positions  *ringbuf.Ring[Point]
	frames     *ringbuf.Ring[int]
}

// NewPredictor creates a predictor with empty history and the sentinel
// position.
func NewPredictor(p Params) *Predictor {
	return &Predictor{
		params:    p,
		smooth:    Unknown,
		positions: ringbuf.New[Point](historyDepth),
		frames:    ringbuf.New[int](historyDepth),
	}
}

// Params returns the session tuning.
func (p *Predictor) Params() Params { return p.params }

// Conviction returns the current conviction value.
func (p *Predictor) Conviction() int { return p.conviction }

// SmoothedPosition returns the exponentially smoothed position, or the
// Unknown sentinel when no detection has been observed since the last
// reset.
func (p *Predictor) SmoothedPosition() Point { return p.smooth }

// Reset zeroes conviction, restores the sentinel position and clears
// both history buffers.
func (p *Predictor) Reset() {
	p.conviction = 0
	p.smooth = Unknown
	p.positions.Clear()
	p.frames.Clear()
}

// AppendPosition pushes a position sample into the history. Callers
// using it directly must keep it paired with AppendFrameIndex.
func (p *Predictor) AppendPosition(pos Point) {
	p.positions.Append(pos)
}

// AppendFrameIndex pushes a frame-index sample into the history.
func (p *Predictor) AppendFrameIndex(frame int) {
	p.frames.Append(frame)
}

// ObserveDetection folds a positive detection at pos on the given frame
// into the smoothed position and the history buffers, and raises
// conviction by ConvictionInOnDetect. Both ring buffers advance in
// lock-step so sample i always pairs with frame index i.
func (p *Predictor) ObserveDetection(pos Point, frame int) {
	if p.smooth.IsUnknown() {
		p.smooth = pos
	} else {
		a := p.params.SmoothingAlpha
		p.smooth = Point{
			X: a*pos.X + (1-a)*p.smooth.X,
			Y: a*pos.Y + (1-a)*p.smooth.Y,
		}
	}
	p.AppendPosition(p.smooth)
	p.AppendFrameIndex(frame)
	p.conviction += p.params.ConvictionInOnDetect
	p.ClampConviction()
}

// ObserveMiss lowers conviction by ConvictionOutNoDetect. Once
// conviction reaches zero the target is considered lost and all history
// is dropped, so stale positions cannot fake continuity when the target
// reappears.
func (p *Predictor) ObserveMiss() {
	p.conviction -= p.params.ConvictionOutNoDetect
	p.ClampConviction()
	if p.conviction == 0 {
		p.smooth = Unknown
		p.positions.Clear()
		p.frames.Clear()
	}
}

// ClampConviction clamps conviction into [0, ConvictionMax]. Callers
// mutating conviction through AddConviction must invoke this afterwards.
func (p *Predictor) ClampConviction() {
	if p.conviction < 0 {
		p.conviction = 0
	}
	if p.conviction > p.params.ConvictionMax {
		p.conviction = p.params.ConvictionMax
	}
}

// AddConviction adjusts conviction by delta without clamping.
func (p *Predictor) AddConviction(delta int) {
	p.conviction += delta
}

// PredictNext extrapolates the position one frame ahead of the newest
// buffered sample using ordinary least squares on each axis against
// frame index, clamped into [0,1]. It returns false until historyDepth
// samples are buffered, or when all buffered frame indices are equal
// (degenerate regression).
func (p *Predictor) PredictNext() (Point, bool) {
	if p.positions.Len() < historyDepth {
		return Unknown, false
	}

	frames := p.frames.Elements()
	xs := make([]float64, len(frames))
	degenerate := true
	for i, f := range frames {
		xs[i] = float64(f)
		if f != frames[0] {
			degenerate = false
		}
	}
	if degenerate {
		return Unknown, false
	}

	positions := p.positions.Elements()
	ys := make([]float64, len(positions))
	zs := make([]float64, len(positions))
	for i, pos := range positions {
		ys[i] = pos.X
		zs[i] = pos.Y
	}

	next := float64(frames[len(frames)-1] + 1)
	ax, bx := stat.LinearRegression(xs, ys, nil, false)
	ay, by := stat.LinearRegression(xs, zs, nil, false)

	return Point{
		X: clamp01(ax + bx*next),
		Y: clamp01(ay + by*next),
	}, true
}
