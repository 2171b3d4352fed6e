package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/metrics"
	"github.com/muurk/vesclink/internal/protocol"
	"github.com/muurk/vesclink/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// SnapshotSource provides the current telemetry. *link.Session implements it.
type SnapshotSource interface {
	Snapshot() (telemetry.Realtime, telemetry.Stats)
}

// linkStatsSource is implemented by sources that also expose stream counters.
type linkStatsSource interface {
	ReassemblerStats() protocol.ReassemblerStats
}

// Config holds the server configuration
type Config struct {
	Addr      string              // Listen address, e.g. ":8470"
	QueueSize int                 // Per-observer update queue
	Gatherer  prometheus.Gatherer // Served on /metrics; nil disables the endpoint
	Metrics   *metrics.Collector  // Records HTTP requests; optional
	Name      string              // Link name reported by /api/status
	Hub       *Hub                // Observer hub; created when nil
}

// Server serves telemetry snapshots over HTTP and pushes updates to
// WebSocket observers.
type Server struct {
	config *Config
	source SnapshotSource
	hub    *Hub
	router chi.Router

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// New creates a new Server instance
func New(config *Config, source SnapshotSource) *Server {
	hub := config.Hub
	if hub == nil {
		hub = NewHub(config.QueueSize)
	}

	s := &Server{
		config: config,
		source: source,
		hub:    hub,
	}
	s.router = s.routes()
	return s
}

// Hub returns the observer hub. Feed it with Hub().Broadcast.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router, for tests and for mounting elsewhere.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/realtime", s.handleRealtime)
		r.Get("/stats", s.handleStats)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/ws", s.handleWS)

	if s.config.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// observe logs and counts every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		elapsed := time.Since(start)
		logging.LogHTTPRequest(r, status, ww.BytesWritten(), elapsed)
		s.config.Metrics.ObserveHTTP(r.Method, route, status, elapsed)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	rt, _ := s.source.Snapshot()
	writeJSON(w, rt)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_, st := s.source.Snapshot()
	writeJSON(w, st)
}

// Status summarises the link for /api/status.
type Status struct {
	Link        string                     `json:"link"`
	Connected   bool                       `json:"connected"`
	RealtimeAge *float64                   `json:"realtime_age_seconds,omitempty"`
	StatsAge    *float64                   `json:"stats_age_seconds,omitempty"`
	Observers   int                        `json:"observers"`
	Reassembler *protocol.ReassemblerStats `json:"reassembler,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rt, st := s.source.Snapshot()
	now := time.Now()

	status := Status{
		Link:      s.config.Name,
		Connected: rt.Connected,
		Observers: s.hub.Clients(),
	}
	if !rt.LastUpdate.IsZero() {
		age := rt.SinceLastUpdate(now).Seconds()
		status.RealtimeAge = &age
	}
	if !st.LastUpdate.IsZero() {
		age := st.SinceLastUpdate(now).Seconds()
		status.StatsAge = &age
	}
	if ls, ok := s.source.(linkStatsSource); ok {
		rx := ls.ReassemblerStats()
		status.Reassembler = &rx
	}
	writeJSON(w, status)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rt, st := s.source.Snapshot()
	s.hub.ServeWS(w, r, &telemetry.Update{
		Kind:     telemetry.KindConnection,
		Realtime: rt,
		Stats:    st,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to write JSON response", zap.Error(err))
	}
}

// Listen binds the configured address. Call it before Serve when the
// caller needs the bound address (for example with port 0).
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Start listens (if Listen was not called) and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv, listener := s.httpServer, s.listener
	s.mu.Unlock()

	logging.Info("Observer server listening",
		zap.String("addr", addr.String()),
		zap.Bool("metrics", s.config.Gatherer != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("observer server: %w", err)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down observer server...")

	s.hub.Close()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return srv.Close()
	}
	return nil
}
