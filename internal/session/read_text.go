package session

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lumen-access/waypoint/internal/fsm"
	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/ports"
	"github.com/lumen-access/waypoint/internal/textblock"
)

// ErrNotProcessed is returned by navigation and retake calls made
// before a recognition pass has completed.
var ErrNotProcessed = errors.New("session: no processed result")

// torchAfterRelaxes is how many threshold relaxations the capture loop
// tolerates before switching the torch on to help a dim scene.
const torchAfterRelaxes = 3

// lineBandHeight is the vertical distance within which two text
// observations are treated as the same line when ordering for speech.
const lineBandHeight = 0.02

// ReadTextSession captures a sharp frame, recognizes its text, isolates
// the central text cluster and reads the result aloud sentence by
// sentence.
type ReadTextSession struct {
	cfg  Config
	id   string
	orch *fsm.Orchestrator[ReadState]

	camera     ports.CameraSource
	detections ports.DetectionSource
	feedback   ports.FeedbackSink
	stopAll    *ports.StopBroadcast

	bag    opBag
	stopMu sync.Mutex
	events chan Event

	mu        sync.Mutex
	grid      *textblock.Grid
	quad      textblock.Quad
	hasQuad   bool
	sentences []string
	index     int
}

// NewReadTextSession wires a reading session to its collaborators.
// stopAll may be nil when no app-wide stop broadcast exists.
func NewReadTextSession(cfg Config, camera ports.CameraSource, detections ports.DetectionSource, feedback ports.FeedbackSink, stopAll *ports.StopBroadcast) *ReadTextSession {
	return &ReadTextSession{
		cfg:        cfg,
		id:         uuid.NewString(),
		orch:       newReadOrchestrator(),
		camera:     camera,
		detections: detections,
		feedback:   feedback,
		stopAll:    stopAll,
		events:     make(chan Event, eventBuffer),
	}
}

// ID returns the session identifier used in logs and the store.
func (s *ReadTextSession) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *ReadTextSession) State() ReadState { return s.orch.Current() }

// IsPaused reports whether reading is paused.
func (s *ReadTextSession) IsPaused() bool { return s.orch.IsPaused() }

// Events returns the session's user-visible event stream.
func (s *ReadTextSession) Events() <-chan Event { return s.events }

// States exposes the lifecycle state stream for observers.
func (s *ReadTextSession) States() (<-chan ReadState, func()) { return s.orch.States() }

// Sentences returns a copy of the processed sentences.
func (s *ReadTextSession) Sentences() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sentences))
	copy(out, s.sentences)
	return out
}

// CurrentIndex returns the sentence navigation index.
func (s *ReadTextSession) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// GridSnapshot returns the last recognition pass's occupancy grid, or
// nil before any pass completed. Used by the debug visualization.
func (s *ReadTextSession) GridSnapshot() [][]bool {
	s.mu.Lock()
	grid := s.grid
	s.mu.Unlock()
	if grid == nil {
		return nil
	}
	return grid.Snapshot()
}

// Quad returns the last detected text cluster, if any.
func (s *ReadTextSession) Quad() (textblock.Quad, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quad, s.hasQuad
}

// Start captures and processes a frame, then speaks the first sentence.
// It rejects with ErrAlreadyRunning when the session is not idle.
func (s *ReadTextSession) Start(ctx context.Context) error {
	if s.orch.Current() != ReadIdle || !s.orch.Transition(ReadCapturing) {
		return ErrAlreadyRunning
	}
	s.mu.Lock()
	s.grid = nil
	s.hasQuad = false
	s.sentences = nil
	s.index = 0
	s.mu.Unlock()

	s.launch(ctx)
	monitoring.Logf("read-text %s: started", s.id)
	return nil
}

// Retake discards the processed result and captures a fresh frame.
func (s *ReadTextSession) Retake(ctx context.Context) error {
	if s.orch.Current() != ReadProcessed || s.orch.IsPaused() {
		return ErrNotProcessed
	}
	s.bag.drain()
	if !s.orch.Transition(ReadCapturing) {
		return ErrAlreadyRunning
	}
	s.launch(ctx)
	return nil
}

func (s *ReadTextSession) launch(ctx context.Context) {
	runCtx := s.bag.begin(ctx)
	s.watchStopAll(runCtx)
	if s.cfg.AutoOffTimeout > 0 {
		s.bag.spawn(func() { s.autoOff(runCtx) })
	}
	s.bag.spawn(func() { s.run(runCtx) })
}

// Pause holds the session and suspends ongoing speech. Only legal once
// a result has been processed.
func (s *ReadTextSession) Pause() bool {
	if s.orch.Current() != ReadProcessed || s.orch.IsPaused() {
		return false
	}
	s.orch.Pause()
	s.feedback.SuspendOutput()
	return true
}

// Resume lifts a pause and resumes suspended speech. The navigation
// index and processed sentences are exactly as they were before the
// pause.
func (s *ReadTextSession) Resume() bool {
	if s.orch.Current() != ReadProcessed || !s.orch.IsPaused() {
		return false
	}
	s.orch.Resume()
	s.feedback.ResumeOutput()
	return true
}

// Stop cancels all outstanding work and returns to idle. Stopping an
// idle session is a no-op; the return value reports whether a cleanup
// actually happened.
func (s *ReadTextSession) Stop() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.orch.Current() == ReadIdle {
		return false
	}
	s.bag.drain()
	s.mu.Lock()
	s.sentences = nil
	s.index = 0
	s.mu.Unlock()
	s.orch.Resume()
	s.orch.Transition(ReadIdle)
	monitoring.Logf("read-text %s: stopped", s.id)
	return true
}

// Next advances to the following sentence and speaks it.
func (s *ReadTextSession) Next() bool { return s.navigate(1) }

// Previous steps back one sentence and speaks it.
func (s *ReadTextSession) Previous() bool { return s.navigate(-1) }

// Repeat speaks the current sentence again.
func (s *ReadTextSession) Repeat() bool { return s.navigate(0) }

func (s *ReadTextSession) navigate(delta int) bool {
	if s.orch.Current() != ReadProcessed || s.orch.IsPaused() {
		return false
	}
	s.mu.Lock()
	next := s.index + delta
	if next < 0 || next >= len(s.sentences) {
		s.mu.Unlock()
		return false
	}
	s.index = next
	sentence := s.sentences[next]
	s.mu.Unlock()

	s.feedback.Speak(sentence)
	return true
}

func (s *ReadTextSession) watchStopAll(ctx context.Context) {
	if s.stopAll == nil {
		return
	}
	stopCh := s.stopAll.Subscribe()
	s.bag.spawn(func() {
		select {
		case <-ctx.Done():
		case <-stopCh:
			go s.Stop()
		}
	})
}

func (s *ReadTextSession) autoOff(ctx context.Context) {
	timer := s.cfg.clock().NewTimer(s.cfg.AutoOffTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C():
		// A session still capturing or recognizing refuses the pause;
		// announcing it anyway would lie to the user.
		if s.Pause() {
			pushEvent(s.events, Event{Kind: EventAnnouncement, Message: "reading paused after inactivity"})
		}
	}
}

func (s *ReadTextSession) abort(msg string) {
	monitoring.Logf("read-text %s: %s", s.id, msg)
	pushEvent(s.events, Event{Kind: EventError, Message: msg})
	s.bag.cancelScope()
	s.orch.Resume()
	s.orch.Transition(ReadIdle)
}

func (s *ReadTextSession) run(ctx context.Context) {
	frame, torchOn, err := s.captureSharpFrame(ctx)
	if torchOn {
		defer func() {
			if err := s.camera.SetTorch(false); err != nil {
				monitoring.Logf("read-text %s: torch off failed: %v", s.id, err)
			}
		}()
	}
	if err != nil {
		if ctx.Err() == nil {
			s.abort("frame capture failed: " + err.Error())
		}
		return
	}
	monitoring.Debugf("read-text %s: accepted frame %d at sharpness %.3f", s.id, frame.Index, frame.Sharpness)

	if !s.orch.Transition(ReadRecognizing) {
		return
	}

	batch, err := s.recognize(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.abort("recognition failed: " + err.Error())
		}
		return
	}

	grid := textblock.NewGrid(s.cfg.GridRows, s.cfg.GridCols)
	var confident []ports.Observation
	for _, obs := range batch {
		if obs.Confidence >= s.cfg.MinTextConfidence {
			confident = append(confident, obs)
			grid.MarkRect(obs.Box)
		}
	}

	quad, hasQuad := textblock.NewClusterDetector(grid, s.cfg.Detector).Detect()
	kept := confident
	if hasQuad {
		kept = kept[:0:0]
		for _, obs := range confident {
			if quad.Contains(obs.Box.Centre()) {
				kept = append(kept, obs)
			}
		}
	}
	sentences := groupSentences(kept)

	s.mu.Lock()
	s.grid = grid
	s.quad = quad
	s.hasQuad = hasQuad
	s.sentences = sentences
	s.index = 0
	s.mu.Unlock()

	if !s.orch.Transition(ReadProcessed) {
		return
	}
	if len(sentences) == 0 {
		pushEvent(s.events, Event{Kind: EventAnnouncement, Message: "no text found"})
		s.feedback.Speak("no text found")
		return
	}
	s.feedback.Speak(sentences[0])
}

// captureSharpFrame pulls frames until one meets the sharpness
// threshold. Each rejection relaxes the threshold by a fixed factor, so
// a dim or shaky scene still makes progress; after a few relaxations
// the torch comes on. Reports whether the torch was switched on.
func (s *ReadTextSession) captureSharpFrame(ctx context.Context) (ports.Frame, bool, error) {
	threshold := s.cfg.SharpnessThreshold
	relaxes := 0
	torchOn := false
	for {
		if err := ctx.Err(); err != nil {
			return ports.Frame{}, torchOn, err
		}
		frame, err := s.camera.CaptureFrame(ctx)
		if err != nil {
			return ports.Frame{}, torchOn, err
		}
		if frame.Sharpness >= threshold {
			return frame, torchOn, nil
		}
		threshold *= s.cfg.SharpnessRelaxFactor
		relaxes++
		monitoring.Debugf("read-text %s: frame %d rejected, threshold now %.3f", s.id, frame.Index, threshold)
		if relaxes == torchAfterRelaxes && !torchOn {
			if err := s.camera.SetTorch(true); err == nil {
				torchOn = true
			}
		}
	}
}

// recognize reads one observation batch for the captured frame.
func (s *ReadTextSession) recognize(ctx context.Context) ([]ports.Observation, error) {
	stream, err := s.detections.Observations(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case batch, ok := <-stream:
		if !ok {
			return nil, errors.New("recognition stream ended")
		}
		return batch, nil
	}
}

// groupSentences orders observations into reading order (lines top to
// bottom, words left to right) and splits the joined text at sentence
// punctuation.
func groupSentences(obs []ports.Observation) []string {
	if len(obs) == 0 {
		return nil
	}
	sorted := make([]ports.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Box.Centre(), sorted[j].Box.Centre()
		if math.Abs(a.Y-b.Y) > lineBandHeight {
			return a.Y > b.Y
		}
		return a.X < b.X
	})

	var joined strings.Builder
	for i, o := range sorted {
		text := strings.TrimSpace(o.Label)
		if text == "" {
			continue
		}
		if i > 0 && joined.Len() > 0 {
			joined.WriteByte(' ')
		}
		joined.WriteString(text)
	}
	return splitSentences(joined.String())
}

// splitSentences cuts text at terminal punctuation, keeping the
// punctuation with its sentence.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
