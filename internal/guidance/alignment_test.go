package guidance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_CentredPoint(t *testing.T) {
	t.Parallel()

	e := NewAlignmentEvaluator(testParams())
	d := e.Evaluate(Point{X: 0.5, Y: 0.5})

	assert.Equal(t, PatternCentred, d.Pattern)
	assert.Equal(t, 1.0, d.Intensity, "full alignment overrides intensity to the ceiling")
}

func TestEvaluate_FarPointHitsIntensityFloor(t *testing.T) {
	t.Parallel()

	e := NewAlignmentEvaluator(testParams())

	// Distance 0.5 from centre saturates the distance term; the computed
	// intensity bottoms out at the floor.
	d := e.Evaluate(Point{X: 1.0, Y: 0.5})
	assert.Equal(t, PatternMoveRight, d.Pattern)
	assert.InDelta(t, 0.3, d.Intensity, 1e-9)

	d = e.Evaluate(Point{X: 0.5, Y: 1.2})
	assert.NotEqual(t, PatternCentred, d.Pattern)
	assert.InDelta(t, 0.1, d.Intensity, 1e-9, "beyond saturation the floor holds")
}

func TestEvaluate_HorizontalDominatesVertical(t *testing.T) {
	t.Parallel()

	e := NewAlignmentEvaluator(testParams())

	// Both axes are off, but the horizontal branch wins.
	d := e.Evaluate(Point{X: 0.1, Y: 0.9})
	assert.Equal(t, PatternMoveLeft, d.Pattern)

	d = e.Evaluate(Point{X: 0.9, Y: 0.1})
	assert.Equal(t, PatternMoveRight, d.Pattern)
}

func TestEvaluate_VerticalPhase(t *testing.T) {
	t.Parallel()

	e := NewAlignmentEvaluator(testParams())

	d := e.Evaluate(Point{X: 0.5, Y: 0.9})
	assert.Equal(t, PatternMoveUp, d.Pattern)

	d = e.Evaluate(Point{X: 0.5, Y: 0.1})
	assert.Equal(t, PatternMoveDown, d.Pattern)
}

func TestEvaluate_IntensityMonotonicInDistance(t *testing.T) {
	t.Parallel()

	e := NewAlignmentEvaluator(testParams())
	prev := 2.0
	for _, x := range []float64{0.65, 0.7, 0.8, 0.9, 1.0} {
		d := e.Evaluate(Point{X: x, Y: 0.5})
		assert.LessOrEqual(t, d.Intensity, prev, "intensity must not grow with distance")
		prev = d.Intensity
	}
}

func TestPhrase_MirrorsBranching(t *testing.T) {
	t.Parallel()

	e := NewAlignmentEvaluator(testParams())

	assert.Equal(t, "move right", e.Phrase(Point{X: 0.9, Y: 0.9}))
	assert.Equal(t, "move left", e.Phrase(Point{X: 0.1, Y: 0.1}))
	assert.Equal(t, "move up", e.Phrase(Point{X: 0.5, Y: 0.9}))
	assert.Equal(t, "move down", e.Phrase(Point{X: 0.5, Y: 0.1}))
	assert.Equal(t, "in the centre", e.Phrase(Point{X: 0.52, Y: 0.48}))
}

func TestNearestToCentre(t *testing.T) {
	t.Parallel()

	centre := Point{X: 0.5, Y: 0.5}

	_, ok := NearestToCentre(nil, centre)
	assert.False(t, ok)

	points := []Point{
		{X: 0.1, Y: 0.1},
		{X: 0.6, Y: 0.5},
		{X: 0.9, Y: 0.9},
	}
	got, ok := NearestToCentre(points, centre)
	require.True(t, ok)
	assert.Equal(t, Point{X: 0.6, Y: 0.5}, got)
}

func TestNearestToCentre_TieBreaksFirstEncountered(t *testing.T) {
	t.Parallel()

	centre := Point{X: 0.5, Y: 0.5}
	// Equidistant left and right of centre; first in slice order wins.
	points := []Point{
		{X: 0.4, Y: 0.5},
		{X: 0.6, Y: 0.5},
	}
	got, ok := NearestToCentre(points, centre)
	require.True(t, ok)
	assert.Equal(t, points[0], got)
}
