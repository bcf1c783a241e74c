// Package server is the whiteboard dev server. It serves the configured page
// prerendered for the requested path, then runs the page for real in a
// websocket session: one Application per browser tab, driven by the frames
// the tab sends. File changes make every tab reload.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/whiteboard/internal/config"
	"github.com/conneroisu/whiteboard/internal/logging"
	"github.com/conneroisu/whiteboard/internal/version"
	"github.com/conneroisu/whiteboard/internal/watcher"
)

// Server serves one configured page to any number of sessions.
type Server struct {
	config       *config.Config
	logger       logging.Logger
	metrics      *Metrics
	registry     *prometheus.Registry
	sessions     map[string]*session
	mutex        sync.RWMutex
	watcher      *watcher.Watcher
	httpServer   *http.Server
	serverMutex  sync.Mutex
	shutdownOnce sync.Once
	started      time.Time
}

// New creates a server for cfg.
func New(cfg *config.Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		config:   cfg,
		logger:   logger.WithComponent("server"),
		metrics:  NewMetrics(reg),
		registry: reg,
		sessions: make(map[string]*session),
		started:  time.Now(),
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket)
	r.Get("/*", s.handlePage)

	return r
}

// Start serves until Shutdown is called. File watching, when enabled, runs
// until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.config.Watch.Enabled {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "file watching disabled")
		}
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "serving", "addr", "http://"+srv.Addr, "page", s.config.App.Page)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) startWatcher(ctx context.Context) error {
	w, err := watcher.New(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return err
	}
	w.AddFilter(watcher.NoHidden)
	w.AddFilter(watcher.Within(s.config.Watch.Paths...))
	for _, p := range s.config.Watch.Paths {
		if err := w.Add(p); err != nil {
			s.logger.Warn(ctx, err, "cannot watch path", "path", p)
		}
	}
	w.AddHandler(func(ctx context.Context, changes []watcher.Change) error {
		n := s.Reload()
		s.logger.Info(ctx, "files changed, reloading", "changes", len(changes), "sessions", n)
		return nil
	})
	w.Start(ctx)

	s.serverMutex.Lock()
	s.watcher = w
	s.serverMutex.Unlock()
	return nil
}

func (s *Server) fileWatcher() *watcher.Watcher {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()
	return s.watcher
}

// Reload tells every session's browser to reload and returns how many were
// told.
func (s *Server) Reload() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, sess := range s.sessions {
		sess.requestReload()
	}
	return len(s.sessions)
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session, stops watching and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		if w := s.fileWatcher(); w != nil {
			if err := w.Stop(); err != nil {
				s.logger.Warn(ctx, err, "stopping file watcher")
			}
		}

		s.mutex.RLock()
		for _, sess := range s.sessions {
			sess.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.mutex.RUnlock()

		s.serverMutex.Lock()
		srv := s.httpServer
		s.serverMutex.Unlock()
		if srv != nil {
			shutdownErr = srv.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) register(sess *session) {
	s.mutex.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mutex.Unlock()

	s.metrics.SessionsActive.Inc()
	s.logger.Debug(context.Background(), "session opened", "session", sess.id, "sessions", n)
}

func (s *Server) unregister(sess *session) {
	s.mutex.Lock()
	delete(s.sessions, sess.id)
	n := len(s.sessions)
	s.mutex.Unlock()

	s.metrics.SessionsActive.Dec()
	s.logger.Debug(context.Background(), "session closed", "session", sess.id, "sessions", n)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.config.Server.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameSize)

	sess, err := s.newSession(conn)
	if err != nil {
		s.logger.Error(r.Context(), err, "page boot failed")
		conn.Close(websocket.StatusInternalError, "page boot failed")
		return
	}

	s.register(sess)
	defer s.unregister(sess)

	if err := sess.run(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
		sess.logger.Warn(r.Context(), err, "session ended")
	}
	sess.close(context.Background())
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	doc, err := Render(s.config, r.URL.Path, s.logger)
	if err != nil {
		s.logger.Error(r.Context(), err, "prerender failed", "path", r.URL.Path)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	templ.Handler(Shell(doc)).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   info.Short(),
		"sessions":  s.Sessions(),
		"watching":  s.fileWatcher() != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
