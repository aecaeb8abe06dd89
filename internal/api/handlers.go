package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/charts"
	"github.com/banshee-data/flightcore/internal/config"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/security"
	"github.com/banshee-data/flightcore/internal/sim"
	"github.com/banshee-data/flightcore/internal/telemetry"
)

// maxRequestBytes bounds simulation request bodies.
const maxRequestBytes = 1 << 20

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	type scenario struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		DurationMs  float64 `json:"duration_ms"`
	}
	var out []scenario
	for _, name := range sim.ScenarioNames() {
		sc, _ := sim.LookupScenario(name)
		out = append(out, scenario{sc.Name, sc.Description, float64(sc.Duration.Milliseconds())})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.Sessions(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []blackbox.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// session loads the {id} session, writing a 404 or 500 on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*blackbox.Session, bool) {
	sess, err := s.store.Session(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, blackbox.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, "Session not found")
		return nil, false
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return nil, false
	}
	return sess, true
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSession(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, blackbox.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, "Session not found")
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete session: %v", err))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// queryInt reads a non-negative integer query parameter, or def when it is
// absent.
func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	return v, nil
}

func frameQuery(r *http.Request) (blackbox.FrameQuery, error) {
	var q blackbox.FrameQuery
	var err error
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(r, "limit", 0); err != nil {
		return q, err
	}
	if q.Every, err = queryInt(r, "every", 1); err != nil {
		return q, err
	}
	return q, nil
}

// frames loads frames of the {id} session after checking it exists.
func (s *Server) frames(w http.ResponseWriter, r *http.Request, q blackbox.FrameQuery) (*blackbox.Session, []blackbox.Frame, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, nil, false
	}
	frames, err := s.store.Frames(r.Context(), sess.ID, q)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load frames: %v", err))
		return nil, nil, false
	}
	if frames == nil {
		frames = []blackbox.Frame{}
	}
	return sess, frames, true
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	q, err := frameQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, frames, ok := s.frames(w, r, q); ok {
		writeJSON(w, http.StatusOK, frames)
	}
}

func (s *Server) showMetrics(w http.ResponseWriter, r *http.Request) {
	if _, frames, ok := s.frames(w, r, blackbox.FrameQuery{}); ok {
		writeJSON(w, http.StatusOK, sim.ComputeMetrics(frames))
	}
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	sess, frames, ok := s.frames(w, r, blackbox.FrameQuery{})
	if !ok {
		return
	}
	if len(frames) == 0 {
		writeJSONError(w, http.StatusNotFound, "Session has no frames")
		return
	}
	title := fmt.Sprintf("%s %s", sess.Scenario, sess.ID[:min(8, len(sess.ID))])

	var buf bytes.Buffer
	switch format := r.URL.Query().Get("format"); format {
	case "", "html":
		err := charts.WriteHTML(&buf, frames, charts.HTMLOptions{
			Title:      title,
			Subtitle:   fmt.Sprintf("%d frames, looptime %dus", len(frames), sess.LooptimeUs),
			AssetsHost: s.cfg.AssetsHost,
		})
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case "png":
		if err := charts.WritePNG(&buf, title, frames); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("inline; filename=%q", security.SanitizeFilename(sess.Scenario+"-"+sess.ID)+".png"))
	default:
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) replaySession(w http.ResponseWriter, r *http.Request) {
	speed := 1.0
	if raw := r.URL.Query().Get("speed"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid 'speed' parameter")
			return
		}
		speed = v
	}
	_, frames, ok := s.frames(w, r, blackbox.FrameQuery{})
	if !ok {
		return
	}
	telemetry.ServeReplay(w, r, frames, telemetry.ReplayOptions{Clock: s.cfg.Clock, Speed: speed})
}

func jsonDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}

// SimulationRequest asks the server to fly a scenario and record it.
type SimulationRequest struct {
	Scenario    string                `json:"scenario"`
	Seed        int64                 `json:"seed"`
	GyroNoise   float32               `json:"gyro_noise"`
	JitterUs    int32                 `json:"jitter_us"`
	RecordEvery int64                 `json:"record_every"`
	Notes       string                `json:"notes"`
	Profile     *config.ProfileConfig `json:"profile,omitempty"`
}

// SimulationResponse is the recorded session and the run summary.
type SimulationResponse struct {
	Session *blackbox.Session `json:"session"`
	Result  *sim.Result       `json:"result"`
}

func (s *Server) runSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	dec := jsonDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	sc, err := sim.LookupScenario(req.Scenario)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, loop := s.cfg.Profile, s.cfg.Loop
	if req.Profile != nil {
		if err := req.Profile.Validate(); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if profile, err = pid.ProfileFromConfig(req.Profile); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if loop, err = pid.LoopConfigFromConfig(req.Profile); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	sess, err := s.store.CreateSession(ctx, blackbox.SessionInfo{
		Scenario:   sc.Name,
		Profile:    profile,
		LooptimeUs: loop.TargetLooptimeUs(),
		Notes:      req.Notes,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create session: %v", err))
		return
	}
	res, err := s.record(ctx, sess.ID, sim.Options{
		Scenario:    sc,
		Profile:     profile,
		Loop:        loop,
		Plant:       s.cfg.Plant,
		Seed:        req.Seed,
		GyroNoise:   req.GyroNoise,
		JitterUs:    req.JitterUs,
		RecordEvery: req.RecordEvery,
	})
	if err != nil {
		if delErr := s.store.DeleteSession(context.WithoutCancel(ctx), sess.ID); delErr != nil {
			logger.Opsf("failed to remove incomplete session %s: %v", sess.ID, delErr)
		}
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Simulation failed: %v", err))
		return
	}
	if sess, err = s.store.Session(ctx, sess.ID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return
	}
	logger.Opsf("recorded %s session %s: %d frames, %d crash events", sc.Name, sess.ID, sess.FrameCount, res.CrashEvents)
	writeJSON(w, http.StatusCreated, SimulationResponse{Session: sess, Result: res})
}

// record runs opts into the session, broadcasting live frames when a hub is
// configured.
func (s *Server) record(ctx context.Context, sessionID string, opts sim.Options) (*sim.Result, error) {
	writer := s.store.NewSessionWriter(sessionID, 0)
	sinks := blackbox.MultiSink{writer}
	if s.cfg.Hub != nil {
		sinks = append(sinks, telemetry.NewHubSink(s.cfg.Hub, 0))
	}
	opts.Sink = sinks

	res, err := sim.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := writer.Close(ctx); err != nil {
		return nil, err
	}
	return res, nil
}
