package sim

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/ports"
)

func TestScriptedDetections_DeliversInOrder(t *testing.T) {
	t.Parallel()

	d := NewScriptedDetections()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := d.Observations(ctx)
	require.NoError(t, err)

	first := []ports.Observation{{Label: "a"}}
	second := []ports.Observation{{Label: "b"}, {Label: "c"}}
	go func() {
		d.Emit(first)
		d.Emit(second)
		d.Close()
	}()

	var got [][]ports.Observation
	for batch := range stream {
		got = append(got, batch)
	}
	if diff := cmp.Diff([][]ports.Observation{first, second}, got); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkingDetections_WalksAndMisses(t *testing.T) {
	t.Parallel()

	w := &WalkingDetections{
		Label:     "cup",
		Start:     guidance.Point{X: 0.2, Y: 0.2},
		Step:      guidance.Point{X: 0.1, Y: 0},
		BoxSize:   0.1,
		Interval:  time.Millisecond,
		MissEvery: 3,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := w.Observations(ctx)
	require.NoError(t, err)

	var batches [][]ports.Observation
	for batch := range stream {
		batches = append(batches, batch)
		if len(batches) == 4 {
			cancel()
			break
		}
	}
	require.Len(t, batches, 4)

	assert.Len(t, batches[0], 1)
	assert.Len(t, batches[1], 1)
	assert.Empty(t, batches[2], "every third batch is a miss")
	assert.Len(t, batches[3], 1)

	// The box centre advances by one step per batch.
	c0 := batches[0][0].Box.Centre()
	c1 := batches[1][0].Box.Centre()
	assert.InDelta(t, 0.1, c1.X-c0.X, 1e-9)
}

func TestRecordingFeedback_Records(t *testing.T) {
	t.Parallel()

	f := NewRecordingFeedback()
	f.EmitHaptic(guidance.PatternMoveLeft, 0.4)
	f.Speak("move left")
	f.SuspendOutput()
	f.ResumeOutput()

	want := []HapticRecord{{Pattern: guidance.PatternMoveLeft, Intensity: 0.4}}
	if diff := cmp.Diff(want, f.Haptics()); diff != "" {
		t.Errorf("haptics mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"move left"}, f.Phrases())
	assert.Equal(t, 1, f.Suspends())
	assert.Equal(t, 1, f.Resumes())
	assert.False(t, f.IsSpeaking())
	f.SetSpeaking(true)
	assert.True(t, f.IsSpeaking())
}

func TestScriptedCamera_SharpnessSequence(t *testing.T) {
	t.Parallel()

	c := NewScriptedCamera(0.1, 0.9)
	ctx := context.Background()

	f0, err := c.CaptureFrame(ctx)
	require.NoError(t, err)
	f1, err := c.CaptureFrame(ctx)
	require.NoError(t, err)
	f2, err := c.CaptureFrame(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0.1, f0.Sharpness)
	assert.Equal(t, 0.9, f1.Sharpness)
	assert.Equal(t, 0.9, f2.Sharpness, "last scripted value repeats")
	assert.Equal(t, []int{0, 1, 2}, []int{f0.Index, f1.Index, f2.Index})

	require.NoError(t, c.SetTorch(true))
	assert.True(t, c.TorchOn())
	assert.Equal(t, 1, c.TorchToggles())
}
