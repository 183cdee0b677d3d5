package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/skytrail/internal/animation"
	"github.com/unklstewy/skytrail/internal/refresh"
)

// FrameSource exposes the most recent frame. *animation.Driver implements it.
type FrameSource interface {
	LastFrame() (animation.Frame, bool)
	State() animation.State
}

// StatsSource exposes refresh counters. *refresh.Coordinator implements it.
type StatsSource interface {
	Stats() refresh.Stats
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server serves the WebSocket stream and a small JSON API:
//
//	GET /ws          frame stream
//	GET /api/frame   latest frame
//	GET /api/stats   refresh and stream counters
//	GET /healthz     liveness
type Server struct {
	router *chi.Mux
	hub    *Hub
	frames FrameSource
	stats  StatsSource
	cfg    ServerConfig
	logger *slog.Logger
}

// NewServer wires the routes. stats may be nil.
func NewServer(cfg ServerConfig, hub *Hub, frames FrameSource, stats StatsSource) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		hub:    hub,
		frames: frames,
		stats:  stats,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "http")),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.hub.ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/frame", s.handleGetFrame)
		r.Get("/stats", s.handleGetStats)
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"driver": s.frames.State().String(),
	})
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.frames.LastFrame()
	if !ok {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no frame yet"})
		return
	}

	// Content negotiation: msgpack on request, JSON otherwise
	var mp msgpackEncoder
	if r.Header.Get("Accept") == mp.ContentType() {
		data, err := mp.Encode(frame)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", mp.ContentType())
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	respondJSON(w, http.StatusOK, frame)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Refresh *refresh.Stats `json:"refresh,omitempty"`
		Stream  HubStats       `json:"stream"`
	}{Stream: s.hub.Stats()}

	if s.stats != nil {
		st := s.stats.Stats()
		resp.Refresh = &st
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
