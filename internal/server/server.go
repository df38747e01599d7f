// Package server exposes the sampler's views over HTTP: one JSON endpoint
// per view, and a websocket endpoint that answers the same views on
// request. Nothing is ever pushed unasked.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/logging"
	"github.com/GustavoChierici/system-dashboard/internal/model"
	"github.com/GustavoChierici/system-dashboard/internal/sampler"
)

const shutdownTimeout = 5 * time.Second

// Views is the read side of a sampler.
type Views interface {
	State() sampler.State
	Cores() int
	CPUView(core int) []model.Point
	Memory() (model.MemoryInfo, bool)
	HostIdentity() (string, bool)
}

// Processes builds a ranked process list on demand.
type Processes interface {
	List(ctx context.Context) ([]model.ProcessRecord, error)
}

type Server struct {
	views    Views
	procs    Processes
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// ctx parents every websocket session; closeSessions cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func New(views Views, procs Processes, opts ...Option) *Server {
	s := &Server{
		views:    views,
		procs:    procs,
		log:      logging.Discard(),
		sessions: make(map[*session]struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /api/cpu/{core}", s.handleCPU)
	s.mux.HandleFunc("GET /api/cores", s.handleView(ViewCores))
	s.mux.HandleFunc("GET /api/memory", s.handleView(ViewMemory))
	s.mux.HandleFunc("GET /api/processes", s.handleView(ViewProcesses))
	s.mux.HandleFunc("GET /api/host", s.handleView(ViewHost))
	s.mux.HandleFunc("GET /ws", s.handleWs)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down gracefully. Shutdown also closes every open websocket session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeSessions)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.WithField("addr", ln.Addr().String()).Info("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleCPU(w http.ResponseWriter, r *http.Request) {
	core, err := strconv.Atoi(r.PathValue("core"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "core must be an integer"})
		return
	}
	s.respond(w, r, Request{View: ViewCPU, Core: core})
}

func (s *Server) handleView(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, Request{View: view})
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, req Request) {
	data, status, err := s.resolve(r.Context(), req)
	if err != nil {
		writeJSON(w, status, errorFor(err))
		return
	}
	writeJSON(w, status, data)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorFor(err error) errorBody {
	return errorBody{Error: err.Error(), Code: errors.Code(err)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// register adds a live session. It fails once sessions have been closed.
func (s *Server) register(c *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.sessions[c] = struct{}{}
	return true
}

func (s *Server) unregister(c *session) {
	s.mu.Lock()
	delete(s.sessions, c)
	s.mu.Unlock()
}

// closeSessions cancels every session context and closes the hijacked
// connections, which http.Server.Shutdown leaves alone.
func (s *Server) closeSessions() {
	s.mu.Lock()
	s.cancel()
	open := make([]*session, 0, len(s.sessions))
	for c := range s.sessions {
		open = append(open, c)
	}
	s.mu.Unlock()

	for _, c := range open {
		c.shutdown()
	}
	if len(open) > 0 {
		s.log.WithField("sessions", len(open)).Info("closed websocket sessions")
	}
}

// activeSessions returns the number of open websocket sessions.
func (s *Server) activeSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
