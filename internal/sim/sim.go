// Package sim provides deterministic in-memory implementations of the
// collaborator ports, used by the session tests and the demo daemon.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/ports"
)

// ScriptedDetections is a detection source fed by the test. Emit blocks
// until the consumer takes the batch, so batches arrive strictly in
// emission order.
type ScriptedDetections struct {
	ch chan []ports.Observation
}

// NewScriptedDetections creates an empty scripted source.
func NewScriptedDetections() *ScriptedDetections {
	return &ScriptedDetections{ch: make(chan []ports.Observation)}
}

// Observations bridges the scripted batches into the port contract.
func (d *ScriptedDetections) Observations(ctx context.Context) (<-chan []ports.Observation, error) {
	out := make(chan []ports.Observation)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-d.ch:
				if !ok {
					return
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Emit delivers one batch to the consumer.
func (d *ScriptedDetections) Emit(batch []ports.Observation) {
	d.ch <- batch
}

// Close ends the stream; the consumer observes a closed channel.
func (d *ScriptedDetections) Close() {
	close(d.ch)
}

// WalkingDetections generates batches where a single labelled box walks
// in a straight line each interval. Used by the demo daemon to exercise
// the guidance loop without a camera.
type WalkingDetections struct {
	Label    string
	Start    guidance.Point
	Step     guidance.Point
	BoxSize  float64
	Interval time.Duration

	// MissEvery drops every n-th batch to exercise conviction decay.
	// Zero means no misses.
	MissEvery int
}

// Observations emits one batch per interval until the context ends.
func (w *WalkingDetections) Observations(ctx context.Context) (<-chan []ports.Observation, error) {
	out := make(chan []ports.Observation)
	go func() {
		defer close(out)
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()

		pos := w.Start
		half := w.BoxSize / 2
		for n := 1; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			var batch []ports.Observation
			if w.MissEvery == 0 || n%w.MissEvery != 0 {
				batch = []ports.Observation{{
					Label: w.Label,
					Box: guidance.Rect{
						MinX: pos.X - half, MinY: pos.Y - half,
						MaxX: pos.X + half, MaxY: pos.Y + half,
					},
					Confidence: 0.9,
				}}
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
			pos = guidance.Point{X: pos.X + w.Step.X, Y: pos.Y + w.Step.Y}
		}
	}()
	return out, nil
}

// ScriptedSpeech replays a fixed transcript sequence. When final is
// empty the stream stays open after the partials, exercising the query
// timeout path.
type ScriptedSpeech struct {
	partials []string
	final    string

	mu        sync.Mutex
	finalized bool
	cancelled bool
}

// NewScriptedSpeech creates a speech source that yields the partials in
// order and then, if final is non-empty, a final transcript.
func NewScriptedSpeech(partials []string, final string) *ScriptedSpeech {
	return &ScriptedSpeech{partials: partials, final: final}
}

// Transcripts returns the scripted sequence. The channel stays open
// when no final transcript is scripted.
func (s *ScriptedSpeech) Transcripts(ctx context.Context) (<-chan ports.Transcript, error) {
	out := make(chan ports.Transcript, len(s.partials)+1)
	for _, p := range s.partials {
		out <- ports.Transcript{Text: p}
	}
	if s.final != "" {
		out <- ports.Transcript{Text: s.final, Final: true}
		close(out)
	}
	return out, nil
}

// Finalize records the forced-finalization request.
func (s *ScriptedSpeech) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
}

// Cancel records the cancellation request.
func (s *ScriptedSpeech) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// FinalizeCalled reports whether Finalize was invoked.
func (s *ScriptedSpeech) FinalizeCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// CancelCalled reports whether Cancel was invoked.
func (s *ScriptedSpeech) CancelCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// HapticRecord is one recorded haptic emission.
type HapticRecord struct {
	Pattern   guidance.Pattern
	Intensity float64
}

// RecordingFeedback records every directive and phrase it receives.
type RecordingFeedback struct {
	mu       sync.Mutex
	haptics  []HapticRecord
	phrases  []string
	speaking bool
	suspends int
	resumes  int
}

// NewRecordingFeedback creates an empty recorder.
func NewRecordingFeedback() *RecordingFeedback {
	return &RecordingFeedback{}
}

// EmitHaptic records the directive.
func (f *RecordingFeedback) EmitHaptic(pattern guidance.Pattern, intensity float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.haptics = append(f.haptics, HapticRecord{Pattern: pattern, Intensity: intensity})
}

// Speak records the phrase.
func (f *RecordingFeedback) Speak(phrase string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phrases = append(f.phrases, phrase)
}

// IsSpeaking reports the scripted speaking flag.
func (f *RecordingFeedback) IsSpeaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

// SetSpeaking scripts the speaking flag.
func (f *RecordingFeedback) SetSpeaking(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = v
}

// SuspendOutput counts the suspension request.
func (f *RecordingFeedback) SuspendOutput() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspends++
}

// ResumeOutput counts the resumption request.
func (f *RecordingFeedback) ResumeOutput() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

// Haptics returns a copy of the recorded directives.
func (f *RecordingFeedback) Haptics() []HapticRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]HapticRecord, len(f.haptics))
	copy(out, f.haptics)
	return out
}

// Phrases returns a copy of the recorded spoken phrases.
func (f *RecordingFeedback) Phrases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.phrases))
	copy(out, f.phrases)
	return out
}

// Suspends returns how many times output suspension was requested.
func (f *RecordingFeedback) Suspends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suspends
}

// Resumes returns how many times output resumption was requested.
func (f *RecordingFeedback) Resumes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumes
}

// ScriptedCamera serves frames with a scripted sharpness sequence; the
// last value repeats once the script is exhausted.
type ScriptedCamera struct {
	mu           sync.Mutex
	sharpness    []float64
	next         int
	torch        bool
	torchToggles int
	zoom         float64
	data         []byte
}

// NewScriptedCamera creates a camera yielding the given sharpness
// values in order.
func NewScriptedCamera(sharpness ...float64) *ScriptedCamera {
	return &ScriptedCamera{sharpness: sharpness, zoom: 1}
}

// CaptureFrame returns the next scripted frame.
func (c *ScriptedCamera) CaptureFrame(ctx context.Context) (ports.Frame, error) {
	if err := ctx.Err(); err != nil {
		return ports.Frame{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := 1.0
	if len(c.sharpness) > 0 {
		idx := c.next
		if idx >= len(c.sharpness) {
			idx = len(c.sharpness) - 1
		}
		s = c.sharpness[idx]
	}
	frame := ports.Frame{Index: c.next, Sharpness: s, Data: c.data}
	c.next++
	return frame, nil
}

// Frames emits scripted frames at a fixed simulated rate.
func (c *ScriptedCamera) Frames(ctx context.Context) (<-chan ports.Frame, error) {
	out := make(chan ports.Frame)
	go func() {
		defer close(out)
		ticker := time.NewTicker(33 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			frame, err := c.CaptureFrame(ctx)
			if err != nil {
				return
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SetTorch records the torch state.
func (c *ScriptedCamera) SetTorch(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.torch = on
	c.torchToggles++
	return nil
}

// TorchToggles reports how many times SetTorch was called.
func (c *ScriptedCamera) TorchToggles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torchToggles
}

// SetZoom records the zoom factor.
func (c *ScriptedCamera) SetZoom(factor float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = factor
	return nil
}

// TorchOn reports the recorded torch state.
func (c *ScriptedCamera) TorchOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torch
}

// Zoom reports the recorded zoom factor.
func (c *ScriptedCamera) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}
