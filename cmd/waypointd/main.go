// Command waypointd runs the guidance core against simulated
// collaborators: a scripted camera, a walking detection target and a
// console feedback sink. It exists to exercise the session pipeline
// end to end and to serve the debug monitoring interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumen-access/waypoint/internal/config"
	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/monitor"
	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/ports"
	"github.com/lumen-access/waypoint/internal/session"
	"github.com/lumen-access/waypoint/internal/sim"
	"github.com/lumen-access/waypoint/internal/store"
	"github.com/lumen-access/waypoint/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	dbFile     = flag.String("db", "waypoint.db", "Path to the SQLite database file")
	configPath = flag.String("config", "", "Path to a tuning config JSON file (defaults apply when empty)")
	mode       = flag.String("mode", "item", "Demo feature to run: item, text or read")
	query      = flag.String("query", "cup", "Search query for the item demo")
	dev        = flag.Bool("dev", false, "Enable debug logging")
)

// consoleFeedback prints directives instead of driving haptics.
type consoleFeedback struct{}

func (consoleFeedback) EmitHaptic(pattern guidance.Pattern, intensity float64) {
	monitoring.Logf("haptic: %s intensity=%.2f", pattern, intensity)
}
func (consoleFeedback) Speak(phrase string) { monitoring.Logf("speak: %q", phrase) }
func (consoleFeedback) IsSpeaking() bool    { return false }
func (consoleFeedback) SuspendOutput()      { monitoring.Logf("speech suspended") }
func (consoleFeedback) ResumeOutput()       { monitoring.Logf("speech resumed") }

func main() {
	flag.Parse()
	if *dev {
		monitoring.EnableDebug()
	}
	monitoring.Logf("waypointd %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	cfg := session.ConfigFromTuning(tuning)

	db, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopAll := ports.NewStopBroadcast()
	feedback := consoleFeedback{}
	detections := &sim.WalkingDetections{
		Label:     *query,
		Start:     guidance.Point{X: 0.9, Y: 0.2},
		Step:      guidance.Point{X: -0.02, Y: 0.015},
		BoxSize:   0.1,
		Interval:  200 * time.Millisecond,
		MissEvery: 7,
	}

	wsConfig := monitor.WebServerConfig{Address: *listen, Store: db}
	g, ctx := errgroup.WithContext(ctx)

	switch *mode {
	case "item":
		s := session.NewSearchItemSession(cfg, detections, feedback, stopAll)
		wsConfig.Search = s
		g.Go(func() error { return runSearch(ctx, db, s, *query) })
	case "text":
		speech := sim.NewScriptedSpeech([]string{"ex"}, *query)
		s := session.NewSearchTextSession(cfg, detections, speech, feedback, stopAll)
		wsConfig.Search = s
		g.Go(func() error { return runTextSearch(ctx, db, s) })
	case "read":
		camera := sim.NewScriptedCamera(0.3, 0.5, 0.8)
		s := session.NewReadTextSession(cfg, camera, detections, feedback, stopAll)
		wsConfig.Reader = s
		g.Go(func() error { return runRead(ctx, s) })
	default:
		log.Fatalf("unknown mode %q (want item, text or read)", *mode)
	}

	ws := monitor.NewWebServer(wsConfig)
	g.Go(func() error { return ws.Start(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("waypointd: %v", err)
	}
	monitoring.Logf("waypointd stopped")
}

func logEvents(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			monitoring.Logf("event: kind=%d %s", e.Kind, e.Message)
		}
	}
}

func runSearch(ctx context.Context, db *store.Store, s *session.SearchItemSession, label string) error {
	if err := s.Start(ctx, label); err != nil {
		return fmt.Errorf("start item search: %w", err)
	}
	defer s.Stop()
	if err := db.RecordSearch(ctx, s.ID(), store.KindItem, label); err != nil {
		monitoring.Logf("record search: %v", err)
	}
	logEvents(ctx, s.Events())
	return nil
}

func runTextSearch(ctx context.Context, db *store.Store, s *session.SearchTextSession) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start text search: %w", err)
	}
	defer s.Stop()
	go func() {
		// Record once query acquisition settles.
		for s.Query() == "" {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
		if err := db.RecordSearch(ctx, s.ID(), store.KindText, s.Query()); err != nil {
			monitoring.Logf("record search: %v", err)
		}
	}()
	logEvents(ctx, s.Events())
	return nil
}

func runRead(ctx context.Context, s *session.ReadTextSession) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start reading: %w", err)
	}
	defer s.Stop()
	logEvents(ctx, s.Events())
	return nil
}
