package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-access/waypoint/internal/fsm"
	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/ports"
	"github.com/lumen-access/waypoint/internal/ringbuf"
	"github.com/lumen-access/waypoint/internal/timeutil"
)

// traceDepth bounds the guidance trace kept for debug visualization.
const traceDepth = 256

// searchCore is the guidance loop shared by item search and text
// search: consume detection batches in order, update the predictor,
// evaluate alignment and emit feedback. The embedding session supplies
// the observation filter.
type searchCore struct {
	cfg  Config
	id   string
	orch *fsm.Orchestrator[SearchState]
	pred *guidance.Predictor
	eval *guidance.AlignmentEvaluator

	detections ports.DetectionSource
	feedback   ports.FeedbackSink
	stopAll    *ports.StopBroadcast

	bag    opBag
	stopMu sync.Mutex
	events chan Event

	// mu guards the predictor, the batch counter and the trace. The loop
	// goroutine is the only writer while running; accessors read.
	mu      sync.Mutex
	batches int
	trace   *ringbuf.Ring[TracePoint]
}

func newSearchCore(cfg Config, detections ports.DetectionSource, feedback ports.FeedbackSink, stopAll *ports.StopBroadcast) searchCore {
	return searchCore{
		cfg:        cfg,
		id:         uuid.NewString(),
		orch:       newSearchOrchestrator(),
		pred:       guidance.NewPredictor(cfg.Guidance),
		eval:       guidance.NewAlignmentEvaluator(cfg.Guidance),
		detections: detections,
		feedback:   feedback,
		stopAll:    stopAll,
		events:     make(chan Event, eventBuffer),
		trace:      ringbuf.New[TracePoint](traceDepth),
	}
}

// ID returns the session identifier used in logs and the store.
func (c *searchCore) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *searchCore) State() SearchState { return c.orch.Current() }

// IsPaused reports whether guidance is paused.
func (c *searchCore) IsPaused() bool { return c.orch.IsPaused() }

// Events returns the session's user-visible event stream.
func (c *searchCore) Events() <-chan Event { return c.events }

// States exposes the lifecycle state stream for observers.
func (c *searchCore) States() (<-chan SearchState, func()) { return c.orch.States() }

// Conviction returns the predictor's current conviction.
func (c *searchCore) Conviction() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pred.Conviction()
}

// SmoothedPosition returns the predictor's smoothed position estimate.
func (c *searchCore) SmoothedPosition() guidance.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pred.SmoothedPosition()
}

// Trace returns a copy of the recent guidance trace, oldest first.
func (c *searchCore) Trace() []TracePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trace.Elements()
}

// Pause suspends guidance. Legal only while actively searching; session
// state is preserved for exact resumption.
func (c *searchCore) Pause() bool {
	if c.orch.Current() != SearchActive || c.orch.IsPaused() {
		return false
	}
	c.orch.Pause()
	return true
}

// Resume lifts a pause.
func (c *searchCore) Resume() bool {
	if c.orch.Current() != SearchActive || !c.orch.IsPaused() {
		return false
	}
	c.orch.Resume()
	return true
}

// Stop cancels all outstanding work, resets the predictor and returns
// to idle. Stopping an idle session is a no-op; the return value
// reports whether a cleanup actually happened.
func (c *searchCore) Stop() bool {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()

	if c.orch.Current() == SearchIdle {
		return false
	}
	c.bag.drain()
	c.mu.Lock()
	c.pred.Reset()
	c.mu.Unlock()
	c.orch.Resume()
	c.orch.Transition(SearchIdle)
	monitoring.Logf("search %s: stopped", c.id)
	return true
}

// resetRun clears per-run state before a new loop starts.
func (c *searchCore) resetRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pred.Reset()
	c.batches = 0
	c.trace.Clear()
}

// watchStopAll subscribes the session to the app-wide stop broadcast
// for the lifetime of the run scope.
func (c *searchCore) watchStopAll(ctx context.Context) {
	if c.stopAll == nil {
		return
	}
	stopCh := c.stopAll.Subscribe()
	c.bag.spawn(func() {
		select {
		case <-ctx.Done():
		case <-stopCh:
			// Stop drains the bag this goroutine belongs to, so it must
			// run outside of it.
			go c.Stop()
		}
	})
}

// abort surfaces an error event and forces the session back to idle.
// Runs on the loop goroutine, so it cancels the scope without waiting.
func (c *searchCore) abort(msg string) {
	monitoring.Logf("search %s: %s", c.id, msg)
	pushEvent(c.events, Event{Kind: EventError, Message: msg})
	c.bag.cancelScope()
	c.mu.Lock()
	c.pred.Reset()
	c.mu.Unlock()
	c.orch.Resume()
	c.orch.Transition(SearchIdle)
}

// runLoop consumes detection batches in arrival order until the scope
// is cancelled or the stream ends. Batches arriving while paused are
// discarded without touching session state.
func (c *searchCore) runLoop(ctx context.Context, match func(ports.Observation) bool) {
	batches, err := c.detections.Observations(ctx)
	if err != nil {
		c.abort("detection stream unavailable: " + err.Error())
		return
	}

	var timer timeutil.Timer
	var timeout <-chan time.Time
	if c.cfg.AutoOffTimeout > 0 {
		timer = c.cfg.clock().NewTimer(c.cfg.AutoOffTimeout)
		defer timer.Stop()
		timeout = timer.C()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			pushEvent(c.events, Event{Kind: EventAnnouncement, Message: "guidance paused after inactivity"})
			c.feedback.Speak("guidance paused")
			c.orch.Pause()
		case batch, ok := <-batches:
			if !ok {
				c.abort("detection stream ended")
				return
			}
			if c.orch.IsPaused() {
				continue
			}
			if c.processBatch(batch, match) && timer != nil {
				timer.Reset(c.cfg.AutoOffTimeout)
			}
		}
	}
}

// processBatch applies one in-order detection batch: filter relevant
// observations, update conviction and position, and emit feedback once
// conviction has reached the first-feedback threshold. Reports whether
// the batch contained a match.
func (c *searchCore) processBatch(batch []ports.Observation, match func(ports.Observation) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batches++
	frame := c.batches

	var candidates []guidance.Point
	for _, obs := range batch {
		if match(obs) {
			candidates = append(candidates, obs.Box.Centre())
		}
	}

	raw, found := guidance.NearestToCentre(candidates, c.pred.Params().Centre)
	if !found {
		c.pred.ObserveMiss()
		return false
	}
	c.pred.ObserveDetection(raw, frame)

	target := c.pred.SmoothedPosition()
	predicted, ok := c.pred.PredictNext()
	if ok {
		target = predicted
	} else {
		predicted = guidance.Unknown
	}
	c.trace.Append(TracePoint{
		Frame:     frame,
		Raw:       raw,
		Smooth:    c.pred.SmoothedPosition(),
		Predicted: predicted,
	})

	// Feedback waits for conviction to reach the detect step so a single
	// flickering hit cannot trigger guidance.
	if c.pred.Conviction() < c.pred.Params().ConvictionInOnDetect {
		return true
	}

	d := c.eval.Evaluate(target)
	c.feedback.EmitHaptic(d.Pattern, d.Intensity)
	if !c.feedback.IsSpeaking() {
		c.feedback.Speak(c.eval.Phrase(target))
	}
	return true
}
