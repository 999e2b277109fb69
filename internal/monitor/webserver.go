// Package monitor serves the debug HTTP interface: a JSON status
// endpoint, chart pages for the occupancy grid and the guidance trace,
// and the admin SQL console.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lumen-access/waypoint/internal/guidance"
	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/session"
	"github.com/lumen-access/waypoint/internal/store"
)

// TraceSource is a guidance session the monitor can inspect. Both
// search session types satisfy it.
type TraceSource interface {
	ID() string
	State() session.SearchState
	IsPaused() bool
	Conviction() int
	SmoothedPosition() guidance.Point
	Trace() []session.TracePoint
}

// WebServer handles the HTTP monitoring interface.
type WebServer struct {
	address   string
	server    *http.Server
	db        *store.Store
	search    TraceSource
	reader    *session.ReadTextSession
	startedAt time.Time
}

// WebServerConfig contains configuration options for the web server.
// Store, Search and Reader are each optional; endpoints depending on an
// absent collaborator answer 404.
type WebServerConfig struct {
	Address string
	Store   *store.Store
	Search  TraceSource
	Reader  *session.ReadTextSession
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		db:        config.Store,
		search:    config.Search,
		reader:    config.Reader,
		startedAt: time.Now(),
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// Start begins the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/debug/grid", ws.handleGridChart)
	mux.HandleFunc("/debug/trace", ws.handleTraceChart)
	mux.HandleFunc("/debug/trace.png", ws.handleTracePlot)

	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("failed to attach admin routes: %v", err)
		}
	}
	return mux
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type searchStatus struct {
	ID         string         `json:"id"`
	State      string         `json:"state"`
	Paused     bool           `json:"paused"`
	Conviction int            `json:"conviction"`
	Position   guidance.Point `json:"position"`
}

type readStatus struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Paused    bool   `json:"paused"`
	Sentences int    `json:"sentences"`
	Index     int    `json:"index"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		ws.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	status := map[string]any{
		"uptime": time.Since(ws.startedAt).Round(time.Second).String(),
	}
	if ws.search != nil {
		status["search"] = searchStatus{
			ID:         ws.search.ID(),
			State:      ws.search.State().String(),
			Paused:     ws.search.IsPaused(),
			Conviction: ws.search.Conviction(),
			Position:   ws.search.SmoothedPosition(),
		}
	}
	if ws.reader != nil {
		status["read"] = readStatus{
			ID:        ws.reader.ID(),
			State:     ws.reader.State().String(),
			Paused:    ws.reader.IsPaused(),
			Sentences: len(ws.reader.Sentences()),
			Index:     ws.reader.CurrentIndex(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
