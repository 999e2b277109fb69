// Package session implements the per-feature control loops: item
// search, text search and text reading. Each session composes the fsm
// orchestrator, the guidance predictor and evaluator, and the external
// collaborator ports into one start/pause/resume/stop lifecycle.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumen-access/waypoint/internal/config"
	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/textblock"
	"github.com/lumen-access/waypoint/internal/timeutil"
)

var (
	// ErrAlreadyRunning is returned by Start when the session is not idle.
	ErrAlreadyRunning = errors.New("session: already running")

	// ErrNoQuery is returned when speech query acquisition produces no
	// usable text.
	ErrNoQuery = errors.New("session: no query acquired")
)

// EventKind distinguishes the user-visible event categories.
type EventKind int

const (
	// EventError is a failure that aborted the session.
	EventError EventKind = iota

	// EventAnnouncement is informational, such as the auto-off notice.
	EventAnnouncement
)

// Event is a user-visible session event. The app layer renders these;
// the core only emits them.
type Event struct {
	Kind    EventKind
	Message string
}

// TracePoint is one guidance cycle captured for debugging: the raw
// detector position, the smoothed estimate and the one-step-ahead
// prediction (Unknown when unavailable).
type TracePoint struct {
	Frame     int
	Raw       guidance.Point
	Smooth    guidance.Point
	Predicted guidance.Point
}

// Config carries everything a session needs beyond its collaborators.
// Zero durations disable the corresponding timeout.
type Config struct {
	Guidance guidance.Params
	Detector textblock.DetectorParams

	GridRows int
	GridCols int

	QueryTimeout         time.Duration
	AutoOffTimeout       time.Duration
	SharpnessThreshold   float64
	SharpnessRelaxFactor float64
	MinTextConfidence    float64

	Clock timeutil.Clock
}

// ConfigFromTuning builds a session Config from the loaded tuning file.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		Guidance: guidance.Params{
			Centre:                guidance.Point{X: t.GetCentreX(), Y: t.GetCentreY()},
			CentreRadius:          t.GetCentreRadius(),
			ConvictionMax:         t.GetConvictionMax(),
			ConvictionInOnDetect:  t.GetConvictionInOnDetect(),
			ConvictionOutNoDetect: t.GetConvictionOutNoDetect(),
			SmoothingAlpha:        t.GetSmoothingAlpha(),
		},
		Detector: textblock.DetectorParams{
			BaseFillEmptyThreshold: t.GetBaseFillEmptyThreshold(),
			EmptyThreshold:         t.GetEmptyThreshold(),
			StripSize:              t.GetStripSize(),
			AngleStepDeg:           t.GetAngleStepDeg(),
			AngleSteps:             t.GetAngleSteps(),
		},
		GridRows:             t.GetGridRows(),
		GridCols:             t.GetGridCols(),
		QueryTimeout:         t.GetQueryTimeout(),
		AutoOffTimeout:       t.GetAutoOffTimeout(),
		SharpnessThreshold:   t.GetSharpnessThreshold(),
		SharpnessRelaxFactor: t.GetSharpnessRelaxFactor(),
		MinTextConfidence:    t.GetMinTextConfidence(),
		Clock:                timeutil.RealClock{},
	}
}

// clock returns the configured clock, defaulting to the real one.
func (c Config) clock() timeutil.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return timeutil.RealClock{}
}

// opBag owns the cancellation scope and goroutines of one session run.
// Draining the bag is the only way a run ends: it cancels the scope and
// waits until every spawned goroutine has returned, so late results from
// a previous run can never reach the next one.
type opBag struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// begin opens a new cancellation scope under parent.
func (b *opBag) begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return ctx
}

// spawn runs fn in a goroutine tracked by the bag.
func (b *opBag) spawn(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// cancelScope cancels the scope without waiting. Used by goroutines
// inside the bag, which cannot drain it without deadlocking on
// themselves.
func (b *opBag) cancelScope() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// drain cancels the scope and waits for all tracked goroutines.
func (b *opBag) drain() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

// eventBuffer bounds undelivered session events the same way the fsm
// subscriber buffer does.
const eventBuffer = 16

// pushEvent delivers e without blocking, dropping the oldest queued
// event when the buffer is full.
func pushEvent(ch chan Event, e Event) {
	for {
		select {
		case ch <- e:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
