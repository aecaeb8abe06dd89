// Package api serves recorded sessions over HTTP: listings, frames,
// metrics, charts, websocket replay and on-demand simulation runs.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/monitoring"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/sim"
	"github.com/banshee-data/flightcore/internal/telemetry"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

var logger = monitoring.NewLogger("[api] ")

// ANSI escape codes for the request log.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// SessionStore is the part of blackbox.Store the API reads and writes.
type SessionStore interface {
	CreateSession(ctx context.Context, info blackbox.SessionInfo) (*blackbox.Session, error)
	Sessions(ctx context.Context) ([]blackbox.Session, error)
	Session(ctx context.Context, id string) (*blackbox.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Frames(ctx context.Context, id string, q blackbox.FrameQuery) ([]blackbox.Frame, error)
	NewSessionWriter(sessionID string, batchSize int) *blackbox.SessionWriter
}

var _ SessionStore = (*blackbox.Store)(nil)

// Config holds the optional parts of a Server.
type Config struct {
	// Hub, if set, receives frames from simulation runs and is served at
	// /ws/live.
	Hub *telemetry.Hub
	// Clock paces replays; nil uses the real clock.
	Clock timeutil.Clock
	// Profile and Loop are used by simulation runs that do not supply
	// their own.
	Profile pid.Profile
	Loop    pid.LoopConfig
	Plant   sim.PlantConfig
	// AssetsHost overrides where chart pages load echarts from.
	AssetsHost string
}

// Server routes API requests.
type Server struct {
	store SessionStore
	cfg   Config
}

// NewServer returns a Server backed by store.
func NewServer(store SessionStore, cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Profile == (pid.Profile{}) {
		cfg.Profile = pid.DefaultProfile()
	}
	if cfg.Loop.TargetLooptimeUs() == 0 {
		cfg.Loop = pid.DefaultLoopConfig()
	}
	if cfg.Plant == (sim.PlantConfig{}) {
		cfg.Plant = sim.DefaultPlantConfig()
	}
	return &Server{store: store, cfg: cfg}
}

// ServeMux returns a mux with every API route registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scenarios", s.listScenarios)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("POST /api/sessions", s.runSimulation)
	mux.HandleFunc("GET /api/sessions/{id}", s.showSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/frames", s.listFrames)
	mux.HandleFunc("GET /api/sessions/{id}/metrics", s.showMetrics)
	mux.HandleFunc("GET /charts/sessions/{id}", s.showChart)
	mux.HandleFunc("GET /ws/replay/{id}", s.replaySession)
	if s.cfg.Hub != nil {
		mux.Handle("GET /ws/live", s.cfg.Hub)
	}
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes websocket upgrades through to the underlying writer.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter { return lrw.ResponseWriter }

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Diagf("failed to write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
