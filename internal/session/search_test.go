package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/ports"
	"github.com/lumen-access/waypoint/internal/sim"
	"github.com/lumen-access/waypoint/internal/textblock"
	"github.com/lumen-access/waypoint/internal/timeutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testSessionConfig(clock timeutil.Clock) Config {
	return Config{
		Guidance: guidance.Params{
			Centre:                guidance.Point{X: 0.5, Y: 0.5},
			CentreRadius:          0.12,
			ConvictionMax:         10,
			ConvictionInOnDetect:  3,
			ConvictionOutNoDetect: 1,
			SmoothingAlpha:        0.35,
		},
		Detector:             textblock.DefaultDetectorParams(),
		GridRows:             20,
		GridCols:             20,
		QueryTimeout:         5 * time.Second,
		SharpnessThreshold:   0.6,
		SharpnessRelaxFactor: 0.9,
		MinTextConfidence:    0.3,
		Clock:                clock,
	}
}

func obsAt(label string, x, y float64) ports.Observation {
	return ports.Observation{
		Label:      label,
		Box:        guidance.Rect{MinX: x - 0.05, MinY: y - 0.05, MaxX: x + 0.05, MaxY: y + 0.05},
		Confidence: 0.9,
	}
}

func waitForEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case e := <-ch:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no event of kind %d arrived", kind)
		}
	}
}

func TestSearchItem_ConvictionGatesFirstFeedback(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	feedback := sim.NewRecordingFeedback()
	s := NewSearchItemSession(testSessionConfig(nil), detections, feedback, nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "cup"))

	// Five consecutive misses must not produce any feedback.
	for i := 0; i < 5; i++ {
		detections.Emit(nil)
	}
	assert.Empty(t, feedback.Haptics())

	// The first match lifts conviction to the detect step, which is
	// exactly the first-feedback threshold.
	detections.Emit([]ports.Observation{obsAt("cup", 0.8, 0.5)})
	require.Eventually(t, func() bool {
		return len(feedback.Haptics()) == 1
	}, waitFor, tick)

	assert.GreaterOrEqual(t, s.Conviction(), 3)
	h := feedback.Haptics()[0]
	assert.Equal(t, guidance.PatternMoveRight, h.Pattern)
	assert.InDelta(t, 0.58, h.Intensity, 1e-9)
	assert.Contains(t, feedback.Phrases(), "move right")
}

func TestSearchItem_StartRejectsWhenRunning(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	s := NewSearchItemSession(testSessionConfig(nil), detections, sim.NewRecordingFeedback(), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "cup"))
	assert.ErrorIs(t, s.Start(context.Background(), "cup"), ErrAlreadyRunning)
}

func TestSearchItem_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	s := NewSearchItemSession(testSessionConfig(nil), detections, sim.NewRecordingFeedback(), nil)

	require.NoError(t, s.Start(context.Background(), "cup"))
	assert.True(t, s.Stop(), "first stop performs the cleanup")
	assert.False(t, s.Stop(), "second stop is a no-op")
	assert.Equal(t, SearchIdle, s.State())
}

func TestSearchItem_PauseResumePreservesState(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	feedback := sim.NewRecordingFeedback()
	s := NewSearchItemSession(testSessionConfig(nil), detections, feedback, nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "cup"))

	detections.Emit([]ports.Observation{obsAt("cup", 0.8, 0.5)})
	detections.Emit([]ports.Observation{obsAt("cup", 0.8, 0.5)})
	require.Eventually(t, func() bool { return s.Conviction() == 6 }, waitFor, tick)

	position := s.SmoothedPosition()
	require.True(t, s.Pause())

	// Batches arriving while paused are discarded without touching state.
	detections.Emit([]ports.Observation{obsAt("cup", 0.1, 0.1)})
	detections.Emit(nil)
	detections.Emit(nil)

	assert.Equal(t, 6, s.Conviction())
	assert.Equal(t, position, s.SmoothedPosition())

	require.True(t, s.Resume())
	assert.Equal(t, 6, s.Conviction())
	assert.Equal(t, position, s.SmoothedPosition())
}

func TestSearchItem_StreamEndAborts(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	s := NewSearchItemSession(testSessionConfig(nil), detections, sim.NewRecordingFeedback(), nil)

	require.NoError(t, s.Start(context.Background(), "cup"))
	detections.Close()

	waitForEvent(t, s.Events(), EventError)
	require.Eventually(t, func() bool { return s.State() == SearchIdle }, waitFor, tick)
	assert.Equal(t, 0, s.Conviction())
}

func TestSearchItem_AutoOffPausesAfterInactivity(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := testSessionConfig(clock)
	cfg.AutoOffTimeout = 30 * time.Second

	detections := sim.NewScriptedDetections()
	feedback := sim.NewRecordingFeedback()
	s := NewSearchItemSession(cfg, detections, feedback, nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "cup"))

	// A match proves the loop is running and rearms the inactivity timer.
	detections.Emit([]ports.Observation{obsAt("cup", 0.5, 0.5)})
	require.Eventually(t, func() bool { return s.Conviction() == 3 }, waitFor, tick)

	require.Eventually(t, func() bool {
		clock.Advance(31 * time.Second)
		return s.IsPaused()
	}, waitFor, tick)
	waitForEvent(t, s.Events(), EventAnnouncement)
	assert.Contains(t, feedback.Phrases(), "guidance paused")
	assert.Equal(t, SearchActive, s.State(), "pause is a flag, not a state")
}

func TestSearchItem_StopAllBroadcast(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	stopAll := ports.NewStopBroadcast()
	s := NewSearchItemSession(testSessionConfig(nil), detections, sim.NewRecordingFeedback(), stopAll)

	require.NoError(t, s.Start(context.Background(), "cup"))
	stopAll.StopAll()

	require.Eventually(t, func() bool { return s.State() == SearchIdle }, waitFor, tick)
}

func TestSearchText_FinalTranscriptStartsSearch(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	feedback := sim.NewRecordingFeedback()
	speech := sim.NewScriptedSpeech([]string{"ex"}, "exit")
	s := NewSearchTextSession(testSessionConfig(nil), detections, speech, feedback, nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return s.State() == SearchActive && s.Query() == "exit"
	}, waitFor, tick)

	// Substring match: "fire exit" contains the query.
	detections.Emit([]ports.Observation{obsAt("fire exit", 0.5, 0.9)})
	require.Eventually(t, func() bool {
		return len(feedback.Haptics()) == 1
	}, waitFor, tick)
	assert.Equal(t, guidance.PatternMoveUp, feedback.Haptics()[0].Pattern)
}

func TestSearchText_TimeoutUsesBestPartial(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := testSessionConfig(clock)

	detections := sim.NewScriptedDetections()
	speech := sim.NewScriptedSpeech([]string{"ex", "exit"}, "")
	s := NewSearchTextSession(cfg, detections, speech, sim.NewRecordingFeedback(), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		clock.Advance(cfg.QueryTimeout)
		return s.State() == SearchActive && s.Query() == "exit"
	}, waitFor, tick)
	assert.True(t, speech.FinalizeCalled())
}

func TestSearchText_ZeroTimeoutDisablesDeadline(t *testing.T) {
	t.Parallel()

	cfg := testSessionConfig(nil)
	cfg.QueryTimeout = 0

	// With no deadline armed, silence keeps the session listening
	// instead of failing with an instant timeout.
	silent := NewSearchTextSession(cfg, sim.NewScriptedDetections(), sim.NewScriptedSpeech(nil, ""), sim.NewRecordingFeedback(), nil)
	defer silent.Stop()
	require.NoError(t, silent.Start(context.Background()))
	assert.Never(t, func() bool {
		return silent.State() != SearchListening
	}, 200*time.Millisecond, tick)

	// A final transcript still completes acquisition.
	speech := sim.NewScriptedSpeech([]string{"ex"}, "exit")
	s := NewSearchTextSession(cfg, sim.NewScriptedDetections(), speech, sim.NewRecordingFeedback(), nil)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return s.State() == SearchActive && s.Query() == "exit"
	}, waitFor, tick)
}

func TestSearchText_NoSpeechAborts(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := testSessionConfig(clock)

	detections := sim.NewScriptedDetections()
	speech := sim.NewScriptedSpeech(nil, "")
	s := NewSearchTextSession(cfg, detections, speech, sim.NewRecordingFeedback(), nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		clock.Advance(cfg.QueryTimeout)
		return s.State() == SearchIdle
	}, waitFor, tick)
	waitForEvent(t, s.Events(), EventError)
}

func TestSearchText_StopWhileListeningCancelsSpeech(t *testing.T) {
	t.Parallel()

	detections := sim.NewScriptedDetections()
	speech := sim.NewScriptedSpeech(nil, "")
	s := NewSearchTextSession(testSessionConfig(nil), detections, speech, sim.NewRecordingFeedback(), nil)

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, SearchListening, s.State())
	require.True(t, s.Stop())

	assert.True(t, speech.CancelCalled())
	assert.Equal(t, SearchIdle, s.State())
}
