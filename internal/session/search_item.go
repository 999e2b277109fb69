package session

import (
	"context"
	"strings"

	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/ports"
)

// SearchItemSession guides the user toward a detected object class. The
// query is the class label, supplied directly by the caller.
type SearchItemSession struct {
	searchCore
}

// NewSearchItemSession wires an item-search session to its
// collaborators. stopAll may be nil when no app-wide stop broadcast
// exists.
func NewSearchItemSession(cfg Config, detections ports.DetectionSource, feedback ports.FeedbackSink, stopAll *ports.StopBroadcast) *SearchItemSession {
	return &SearchItemSession{
		searchCore: newSearchCore(cfg, detections, feedback, stopAll),
	}
}

// Start begins searching for the given class label. It rejects with
// ErrAlreadyRunning when the session is not idle.
func (s *SearchItemSession) Start(ctx context.Context, label string) error {
	if !s.orch.Transition(SearchActive) {
		return ErrAlreadyRunning
	}
	s.resetRun()

	runCtx := s.bag.begin(ctx)
	s.watchStopAll(runCtx)
	s.bag.spawn(func() {
		s.runLoop(runCtx, func(o ports.Observation) bool {
			return strings.EqualFold(o.Label, label)
		})
	})
	monitoring.Logf("search-item %s: started for %q", s.id, label)
	return nil
}
