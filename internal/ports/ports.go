// Package ports declares the collaborator interfaces the guidance core
// consumes. Platform adapters (camera capture, ML inference, speech,
// haptics) implement these; the core never depends on a concrete
// platform type. All asynchronous collaborators expose channel-based
// sequences and honour context cancellation.
package ports

import (
	"context"
	"sync"

	"github.com/lumen-access/waypoint/internal/guidance"
)

// Observation is one detector result: a class label or recognized text
// string, a normalized bounding box (origin bottom-left) and the
// detector's confidence in [0,1].
type Observation struct {
	Label      string
	Box        guidance.Rect
	Confidence float64
}

// DetectionSource exposes an async sequence of observation batches.
// The channel is closed when the stream ends or fails; consumers treat
// closure as end-of-stream and abort their session.
type DetectionSource interface {
	Observations(ctx context.Context) (<-chan []Observation, error)
}

// Frame is one captured camera frame with its sharpness score.
type Frame struct {
	Index     int
	Sharpness float64
	Data      []byte
}

// CameraSource exposes single-frame pull and a throttled continuous
// stream, plus torch and zoom control.
type CameraSource interface {
	CaptureFrame(ctx context.Context) (Frame, error)
	Frames(ctx context.Context) (<-chan Frame, error)
	SetTorch(on bool) error
	SetZoom(factor float64) error
}

// Transcript is a partial or final speech-to-text result.
type Transcript struct {
	Text  string
	Final bool
}

// SpeechSource exposes an async sequence of transcripts. Finalize
// forces the recognizer to emit its best final result; Cancel abandons
// the recognition entirely.
type SpeechSource interface {
	Transcripts(ctx context.Context) (<-chan Transcript, error)
	Finalize()
	Cancel()
}

// FeedbackSink accepts haptic directives and spoken phrases.
// SuspendOutput and ResumeOutput are required capabilities, not
// optional extras discovered by downcasting: pausing a reading session
// must be able to hold and resume ongoing speech.
type FeedbackSink interface {
	EmitHaptic(pattern guidance.Pattern, intensity float64)
	Speak(phrase string)
	IsSpeaking() bool
	SuspendOutput()
	ResumeOutput()
}

// StopBroadcast is the app-wide "stop everything" signal. Every running
// session subscribes; StopAll releases all current subscribers at once.
// Constructed once and passed explicitly to each session.
type StopBroadcast struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewStopBroadcast creates a broadcast channel with no pending signal.
func NewStopBroadcast() *StopBroadcast {
	return &StopBroadcast{ch: make(chan struct{})}
}

// Subscribe returns a channel that is closed on the next StopAll.
func (s *StopBroadcast) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// StopAll signals every current subscriber and rearms for the next
// round of subscriptions.
func (s *StopBroadcast) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}
