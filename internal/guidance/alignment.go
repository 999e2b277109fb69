package guidance

import (
	"math"
	"strings"
)

// Pattern identifies a discrete haptic pattern.
type Pattern int

const (
	PatternNone Pattern = iota
	PatternMoveLeft
	PatternMoveRight
	PatternMoveUp
	PatternMoveDown
	PatternCentred
)

// String returns the pattern name used in logs and debug output.
func (p Pattern) String() string {
	switch p {
	case PatternMoveLeft:
		return "move-left"
	case PatternMoveRight:
		return "move-right"
	case PatternMoveUp:
		return "move-up"
	case PatternMoveDown:
		return "move-down"
	case PatternCentred:
		return "centred"
	default:
		return "none"
	}
}

// Directive is the feedback computed for one detection cycle: a haptic
// pattern, an intensity in [0,1] and an optional spoken phrase. It is
// produced, emitted and discarded; never persisted.
type Directive struct {
	Pattern   Pattern
	Intensity float64
	Phrase    string
}

// Intensity mapping constants. Distance saturates at half the frame, so
// a target at the far edge still produces a perceptible floor pulse.
const (
	intensityBase       = 0.3
	intensityRange      = 0.7
	intensitySaturation = 0.5
	intensityFloor      = 0.1
	intensityCeiling    = 1.0
)

// AlignmentEvaluator is the pure two-phase centre-alignment policy:
// resolve horizontal misalignment first, then vertical, then report
// centred. It holds only configuration, no state.
type AlignmentEvaluator struct {
	params Params
}

// NewAlignmentEvaluator creates an evaluator for the given tuning.
func NewAlignmentEvaluator(p Params) *AlignmentEvaluator {
	return &AlignmentEvaluator{params: p}
}

// Evaluate maps a target position to a directive. The intensity scales
// monotonically with distance from centre; reaching full alignment
// overrides it to the ceiling as a deliberate "you are there" signal.
// The phrase is left empty; callers that want speech build it with
// Phrase after checking the sink's speaking status.
func (e *AlignmentEvaluator) Evaluate(p Point) Directive {
	centre := e.params.Centre
	radius := e.params.CentreRadius

	// Beyond the saturation distance the linear term goes negative and
	// the clamp floor takes over, so far targets still pulse faintly.
	distance := p.DistanceTo(centre)
	intensity := clamp(
		intensityBase+intensityRange*(1-distance/intensitySaturation),
		intensityFloor, intensityCeiling)

	dx := p.X - centre.X
	dy := p.Y - centre.Y

	// Phase one: horizontal misalignment dominates regardless of the
	// vertical offset.
	// Panning the camera toward the target walks it into the centre, so
	// a target right of centre asks for a move to the right.
	if math.Abs(dx) >= radius {
		if dx > 0 {
			return Directive{Pattern: PatternMoveRight, Intensity: intensity}
		}
		return Directive{Pattern: PatternMoveLeft, Intensity: intensity}
	}

	// Phase two: horizontally centred, resolve the vertical axis.
	if math.Abs(dy) >= radius {
		if dy > 0 {
			return Directive{Pattern: PatternMoveUp, Intensity: intensity}
		}
		return Directive{Pattern: PatternMoveDown, Intensity: intensity}
	}

	return Directive{Pattern: PatternCentred, Intensity: intensityCeiling}
}

// Phrase builds the spoken guidance for a position, mirroring the same
// two-phase branching as Evaluate. Callers must suppress it while an
// utterance is in progress (check the sink's IsSpeaking before calling).
func (e *AlignmentEvaluator) Phrase(p Point) string {
	centre := e.params.Centre
	radius := e.params.CentreRadius

	var parts []string
	dx := p.X - centre.X
	dy := p.Y - centre.Y

	switch {
	case dx >= radius:
		parts = append(parts, "move right")
	case dx <= -radius:
		parts = append(parts, "move left")
	}
	if len(parts) == 0 {
		switch {
		case dy >= radius:
			parts = append(parts, "move up")
		case dy <= -radius:
			parts = append(parts, "move down")
		}
	}
	if len(parts) == 0 {
		return "in the centre"
	}
	return strings.Join(parts, " and ")
}

// NearestToCentre returns the point closest to centre. Exact distance
// ties resolve to the first point encountered in iteration order; the
// rule is deterministic but callers should not rely on it as a product
// guarantee since collaborators control the candidate order.
func NearestToCentre(points []Point, centre Point) (Point, bool) {
	if len(points) == 0 {
		return Unknown, false
	}
	best := points[0]
	bestDist := best.DistanceTo(centre)
	for _, p := range points[1:] {
		if d := p.DistanceTo(centre); d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best, true
}
