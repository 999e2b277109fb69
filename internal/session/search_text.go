package session

import (
	"context"
	"strings"
	"time"

	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/ports"
)

// SearchTextSession guides the user toward recognized text matching a
// spoken query. The query is acquired from the speech source first;
// once the query timeout fires the best partial transcript is used
// rather than failing outright.
type SearchTextSession struct {
	searchCore
	speech ports.SpeechSource

	// query is the acquired search phrase, guarded by searchCore.mu.
	query string
}

// NewSearchTextSession wires a text-search session to its
// collaborators.
func NewSearchTextSession(cfg Config, detections ports.DetectionSource, speech ports.SpeechSource, feedback ports.FeedbackSink, stopAll *ports.StopBroadcast) *SearchTextSession {
	return &SearchTextSession{
		searchCore: newSearchCore(cfg, detections, feedback, stopAll),
		speech:     speech,
	}
}

// Query returns the acquired search phrase, empty until acquisition
// completes.
func (s *SearchTextSession) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Start begins query acquisition followed by the guidance loop. It
// rejects with ErrAlreadyRunning when the session is not idle.
func (s *SearchTextSession) Start(ctx context.Context) error {
	if !s.orch.Transition(SearchListening) {
		return ErrAlreadyRunning
	}
	s.resetRun()
	s.mu.Lock()
	s.query = ""
	s.mu.Unlock()

	runCtx := s.bag.begin(ctx)
	s.watchStopAll(runCtx)
	s.bag.spawn(func() { s.run(runCtx) })
	monitoring.Logf("search-text %s: listening for query", s.id)
	return nil
}

func (s *SearchTextSession) run(ctx context.Context) {
	query, err := s.acquireQuery(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.abort("query acquisition failed: " + err.Error())
		return
	}
	s.mu.Lock()
	s.query = query
	s.mu.Unlock()

	if !s.orch.Transition(SearchActive) {
		return
	}
	monitoring.Logf("search-text %s: searching for %q", s.id, query)

	lower := strings.ToLower(query)
	s.runLoop(ctx, func(o ports.Observation) bool {
		return strings.Contains(strings.ToLower(o.Label), lower)
	})
}

// acquireQuery consumes transcripts until a final result arrives. On
// timeout the recognizer is forced to finalize and the best partial
// wins; only a run with no usable text at all fails.
func (s *SearchTextSession) acquireQuery(ctx context.Context) (string, error) {
	transcripts, err := s.speech.Transcripts(ctx)
	if err != nil {
		return "", err
	}

	// A zero timeout disables the deadline and waits for a final
	// transcript or the end of the stream.
	var timeout <-chan time.Time
	if s.cfg.QueryTimeout > 0 {
		timer := s.cfg.clock().NewTimer(s.cfg.QueryTimeout)
		defer timer.Stop()
		timeout = timer.C()
	}

	var best string
	for {
		select {
		case <-ctx.Done():
			s.speech.Cancel()
			return "", ctx.Err()
		case <-timeout:
			// Transcripts that raced the deadline still count.
		drain:
			for {
				select {
				case t, ok := <-transcripts:
					if !ok {
						break drain
					}
					if t.Text != "" {
						best = t.Text
					}
					if t.Final && best != "" {
						return best, nil
					}
				default:
					break drain
				}
			}
			s.speech.Finalize()
			if best != "" {
				return best, nil
			}
			return "", ErrNoQuery
		case t, ok := <-transcripts:
			if !ok {
				if best != "" {
					return best, nil
				}
				return "", ErrNoQuery
			}
			if t.Text != "" {
				best = t.Text
			}
			if t.Final {
				if best == "" {
					return "", ErrNoQuery
				}
				return best, nil
			}
		}
	}
}
