// Package admin exposes the HTTP request layer: starting simulations,
// reporting status and serving the viewer page.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"watertank-sim/internal/hub"
	"watertank-sim/internal/logging"
	"watertank-sim/internal/sim"
	"watertank-sim/internal/tank"
)

//go:embed templates/index.html
var content embed.FS

const maxRequestBody = 1 << 16

// Options tune the routes a Server registers.
type Options struct {
	// WSAddr is the dedicated WebSocket listener. When empty the WebSocket
	// endpoint is mounted at /ws on the HTTP server instead.
	WSAddr string
	WSPath string
	// ShutdownTimeout bounds graceful shutdown once the context ends.
	ShutdownTimeout time.Duration
}

type Server struct {
	sup  *sim.Supervisor
	hub  *hub.Hub
	opts Options
	tpl  *template.Template
	mux  *http.ServeMux
}

// NewServer wires handlers for sup and h.
func NewServer(sup *sim.Supervisor, h *hub.Hub, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.WSPath == "" {
		opts.WSPath = "/"
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{sup: sup, hub: h, opts: opts, tpl: tpl, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /tank/simulate", s.handleSimulate)
	s.mux.HandleFunc("GET /tank/status", s.handleStatus)
	s.mux.HandleFunc("GET /tank/limits", s.handleLimits)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.WSAddr == "" {
		s.mux.HandleFunc("GET /ws", s.hub.ServeWS)
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves the HTTP API on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	return serve(ctx, &http.Server{Addr: addr, Handler: s.mux}, s.opts.ShutdownTimeout)
}

// StartWebSocket serves the hub on the dedicated WebSocket listener until
// ctx is cancelled.
func (s *Server) StartWebSocket(ctx context.Context) error {
	if s.opts.WSAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.WSPath, s.hub.ServeWS)
	return serve(ctx, &http.Server{Addr: s.opts.WSAddr, Handler: mux}, s.opts.ShutdownTimeout)
}

func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	log := logging.FromContext(ctx).With("addr", srv.Addr)
	srv.BaseContext = func(net.Listener) context.Context {
		return logging.NewContext(context.Background(), log)
	}
	srv.ReadHeaderTimeout = 10 * time.Second

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown; the hub
	// closes those.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("stopped")
	return nil
}

// simulateRequest uses pointers so absent fields can be told apart from zero.
type simulateRequest struct {
	WaterLevel   *float64 `json:"water_level"`
	HoleHeight   *float64 `json:"hole_height"`
	HoleDiameter *float64 `json:"hole_diameter"`
	TankWidth    *float64 `json:"tank_width"`
}

func (r simulateRequest) spec() (tank.TankSpec, error) {
	fields := []struct {
		name string
		v    *float64
	}{
		{"water_level", r.WaterLevel},
		{"hole_height", r.HoleHeight},
		{"hole_diameter", r.HoleDiameter},
		{"tank_width", r.TankWidth},
	}
	for _, f := range fields {
		if f.v == nil {
			return tank.TankSpec{}, &tank.ValidationError{Field: f.name, Constraint: "is required"}
		}
	}
	return tank.TankSpec{
		WaterLevel:   *r.WaterLevel,
		HoleHeight:   *r.HoleHeight,
		HoleDiameter: *r.HoleDiameter,
		TankWidth:    *r.TankWidth,
	}, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req simulateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	var runID string
	spec, err := req.spec()
	if err == nil {
		runID, err = s.sup.Start(r.Context(), spec)
	}
	var verr *tank.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Info("rejected simulation request", "field", verr.Field, "constraint", verr.Constraint)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Field: verr.Field})
		return
	case errors.Is(err, sim.ErrSupervisorStopped):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	case err != nil:
		log.Error("start simulation failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "new simulation started",
		"run_id": runID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sup.Status()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no simulation has been started"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sup.Limits())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"observers": s.hub.Len(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	wsURL := "ws://" + r.Host + "/ws"
	if s.opts.WSAddr != "" {
		wsURL = "ws://" + wsHost(r.Host, s.opts.WSAddr) + s.opts.WSPath
	}
	data := struct {
		Limits tank.Limits
		WSURL  string
	}{
		Limits: s.sup.Limits(),
		WSURL:  wsURL,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render index failed", "err", err)
	}
}

// wsHost combines the host the page was requested from with the port of the
// dedicated WebSocket listener.
func wsHost(requestHost, wsAddr string) string {
	host, _, err := net.SplitHostPort(requestHost)
	if err != nil {
		host = requestHost
	}
	wsHostPart, port, err := net.SplitHostPort(wsAddr)
	if err != nil {
		return wsAddr
	}
	if wsHostPart != "" && wsHostPart != "0.0.0.0" && wsHostPart != "::" {
		host = wsHostPart
	}
	return net.JoinHostPort(host, port)
}
