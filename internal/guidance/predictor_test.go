package guidance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		Centre:                Point{X: 0.5, Y: 0.5},
		CentreRadius:          0.12,
		ConvictionMax:         10,
		ConvictionInOnDetect:  3,
		ConvictionOutNoDetect: 1,
		SmoothingAlpha:        0.35,
	}
}

func TestPredictNext_RequiresThreeSamples(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())

	_, ok := p.PredictNext()
	assert.False(t, ok, "no samples")

	p.AppendPosition(Point{X: 0.1, Y: 0.1})
	p.AppendFrameIndex(0)
	p.AppendPosition(Point{X: 0.2, Y: 0.1})
	p.AppendFrameIndex(1)

	_, ok = p.PredictNext()
	assert.False(t, ok, "two samples")
}

func TestPredictNext_LinearExtrapolation(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())
	positions := []Point{{X: 0, Y: 0}, {X: 0.2, Y: 0}, {X: 0.4, Y: 0}}
	for i, pos := range positions {
		p.AppendPosition(pos)
		p.AppendFrameIndex(i)
	}

	got, ok := p.PredictNext()
	require.True(t, ok)
	assert.InDelta(t, 0.6, got.X, 1e-9)
	assert.InDelta(t, 0.0, got.Y, 1e-9)
}

func TestPredictNext_ClampsIntoUnitSquare(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())
	positions := []Point{{X: 0.5, Y: 0.1}, {X: 0.75, Y: 0.05}, {X: 1.0, Y: 0.0}}
	for i, pos := range positions {
		p.AppendPosition(pos)
		p.AppendFrameIndex(i)
	}

	got, ok := p.PredictNext()
	require.True(t, ok)
	assert.Equal(t, 1.0, got.X, "x extrapolates past the frame edge and clamps")
	assert.Equal(t, 0.0, got.Y)
}

func TestPredictNext_DegenerateFrameIndices(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())
	for _, pos := range []Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}, {X: 0.3, Y: 0.3}} {
		p.AppendPosition(pos)
		p.AppendFrameIndex(7)
	}

	_, ok := p.PredictNext()
	assert.False(t, ok, "identical frame indices make the regression degenerate")
}

func TestConviction_ClampAndLossClearsHistory(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())
	for i := 0; i < 10; i++ {
		p.ObserveDetection(Point{X: 0.5, Y: 0.5}, i)
	}
	assert.Equal(t, 10, p.Conviction(), "conviction saturates at the maximum")

	for i := 0; i < 10; i++ {
		p.ObserveMiss()
	}
	assert.Equal(t, 0, p.Conviction())
	assert.True(t, p.SmoothedPosition().IsUnknown(), "losing the target drops the position")

	_, ok := p.PredictNext()
	assert.False(t, ok, "history must be cleared once conviction reaches zero")
}

func TestObserveDetection_Smoothing(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())

	p.ObserveDetection(Point{X: 0.2, Y: 0.4}, 0)
	assert.Equal(t, Point{X: 0.2, Y: 0.4}, p.SmoothedPosition(), "first detection adopts the raw position")

	p.ObserveDetection(Point{X: 1.0, Y: 0.4}, 1)
	got := p.SmoothedPosition()
	assert.InDelta(t, 0.35*1.0+0.65*0.2, got.X, 1e-9)
	assert.InDelta(t, 0.4, got.Y, 1e-9)
}

func TestReset(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())
	for i := 0; i < 5; i++ {
		p.ObserveDetection(Point{X: 0.3, Y: 0.3}, i)
	}
	p.Reset()

	assert.Equal(t, 0, p.Conviction())
	assert.True(t, p.SmoothedPosition().IsUnknown())
	_, ok := p.PredictNext()
	assert.False(t, ok)
}

func TestAddConviction_CallerMustClamp(t *testing.T) {
	t.Parallel()

	p := NewPredictor(testParams())
	p.AddConviction(99)
	assert.Equal(t, 99, p.Conviction(), "AddConviction does not clamp on its own")
	p.ClampConviction()
	assert.Equal(t, 10, p.Conviction())
}
