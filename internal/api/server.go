package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/smokescreen/geometry"
	"github.com/example/smokescreen/internal/config"
	"github.com/example/smokescreen/kinematics"
	"github.com/example/smokescreen/obscuration"
	"github.com/example/smokescreen/simulation"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type Server struct {
	cfg      config.Config
	sim      *simulation.Simulator
	logger   *zap.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type motionRequest struct {
	Position geometry.Vector3 `json:"position"`
	Velocity geometry.Vector3 `json:"velocity"`
	Time     float64          `json:"time"`
	Gravity  *float64         `json:"gravity,omitempty"`
}

type motionResponse struct {
	Position geometry.Vector3 `json:"position"`
}

type intersectRequest struct {
	A      geometry.Vector3 `json:"a"`
	B      geometry.Vector3 `json:"b"`
	Center geometry.Vector3 `json:"center"`
	Radius float64          `json:"radius"`
}

type intersectResponse struct {
	Intersects bool `json:"intersects"`
}

type createdResponse struct {
	ID string `json:"id"`
}

type streamMessage struct {
	Type     string               `json:"type"`
	Snapshot *simulation.Snapshot `json:"snapshot,omitempty"`
	Summary  *obscuration.Summary `json:"summary,omitempty"`
}

func NewServer(cfg config.Config, sim *simulation.Simulator, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		sim:    sim,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.srv = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler returns the routed HTTP handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/motion/linear", s.linearHandler).Methods(http.MethodPost)
	router.HandleFunc("/motion/projectile", s.projectileHandler).Methods(http.MethodPost)
	router.HandleFunc("/intersect", s.intersectHandler).Methods(http.MethodPost)

	router.HandleFunc("/scenarios", s.listScenariosHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios", s.createScenarioHandler).Methods(http.MethodPost)
	router.HandleFunc("/scenarios/{id}", s.getScenarioHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{id}", s.deleteScenarioHandler).Methods(http.MethodDelete)
	router.HandleFunc("/scenarios/{id}/snapshot", s.snapshotHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{id}/sweep", s.sweepHandler).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{id}/stream", s.streamHandler).Methods(http.MethodGet)

	// Wrapped outside the router so 404 and 405 responses are logged too.
	return s.logRequests(router)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server listening", zap.String("addr", s.cfg.Server.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) linearHandler(w http.ResponseWriter, r *http.Request) {
	var req motionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Gravity != nil {
		s.writeError(w, fmt.Errorf("%w: linear motion takes no gravity", errBadRequest))
		return
	}
	s.writeJSON(w, http.StatusOK, motionResponse{Position: kinematics.LinearMotion(req.Position, req.Velocity, req.Time)})
}

func (s *Server) projectileHandler(w http.ResponseWriter, r *http.Request) {
	var req motionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	g := kinematics.DefaultGravity
	if req.Gravity != nil {
		g = *req.Gravity
	}
	s.writeJSON(w, http.StatusOK, motionResponse{Position: kinematics.ProjectileMotion(req.Position, req.Velocity, req.Time, g)})
}

func (s *Server) intersectHandler(w http.ResponseWriter, r *http.Request) {
	var req intersectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	hit, err := geometry.SegmentIntersectsSphere(req.A, req.B, req.Radius, req.Center)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, intersectResponse{Intersects: hit})
}

func (s *Server) listScenariosHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sim.List())
}

func (s *Server) createScenarioHandler(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		scenario *simulation.Scenario
		err      error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		scenario, err = simulation.LoadYAML(body)
	} else {
		scenario, err = simulation.LoadJSON(body)
	}
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	id, err := s.sim.Add(*scenario)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("scenario registered", zap.String("id", id), zap.String("name", scenario.Name))
	s.writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) getScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scenario, err := s.sim.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, simulation.Entry{ID: id, Scenario: scenario})
}

func (s *Server) deleteScenarioHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sim.Remove(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	t, err := queryFloat(r, "t", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.sim.Snapshot(mux.Vars(r)["id"], t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) sweepHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.sweepConfig(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.sim.Sweep(r.Context(), mux.Vars(r)["id"], cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// streamHandler checks its inputs before upgrading, so they fail as plain HTTP
// responses. It then sends one snapshot message per sample as it is evaluated,
// followed by the summary.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, err := s.sweepConfig(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.sim.Get(id); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeErr error
	summary, err := s.sim.Stream(r.Context(), id, cfg, func(snap simulation.Snapshot) error {
		writeErr = conn.WriteJSON(streamMessage{Type: "snapshot", Snapshot: &snap})
		return writeErr
	})
	if writeErr != nil {
		s.logger.Debug("stream client went away", zap.String("id", id), zap.Error(writeErr))
		return
	}
	if err != nil {
		s.logger.Error("stream evaluation failed", zap.String("id", id), zap.Error(err))
		closing := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "sweep failed")
		_ = conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
		return
	}
	if err := conn.WriteJSON(streamMessage{Type: "summary", Summary: &summary}); err != nil {
		s.logger.Debug("stream client went away", zap.String("id", id), zap.Error(err))
		return
	}

	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "sweep complete")
	_ = conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
}

func (s *Server) sweepConfig(r *http.Request) (obscuration.SweepConfig, error) {
	start, err := queryFloat(r, "start", 0)
	if err != nil {
		return obscuration.SweepConfig{}, err
	}
	end, err := queryFloat(r, "end", start)
	if err != nil {
		return obscuration.SweepConfig{}, err
	}
	step, err := queryFloat(r, "step", 1)
	if err != nil {
		return obscuration.SweepConfig{}, err
	}

	cfg := obscuration.SweepConfig{Start: start, End: end, Step: step, Workers: s.cfg.Sweep.Workers}
	if err := cfg.Validate(); err != nil {
		return obscuration.SweepConfig{}, err
	}
	if (end-start)/step >= float64(s.cfg.Sweep.MaxSamples) {
		return obscuration.SweepConfig{}, fmt.Errorf("%w: window exceeds %d samples", obscuration.ErrInvalidSweep, s.cfg.Sweep.MaxSamples)
	}
	return cfg, nil
}

func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: query parameter %s: %v", errBadRequest, key, err)
	}
	return v, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, simulation.ErrUnknownScenario):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, geometry.ErrInvalidArgument),
		errors.Is(err, obscuration.ErrInvalidSweep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}
