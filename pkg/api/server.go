package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/openclaw/launcher/pkg/config"
	"github.com/openclaw/launcher/pkg/log"
	"github.com/openclaw/launcher/pkg/logstream"
	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/metrics"
)

// Server is the operator HTTP surface.
type Server struct {
	cfg      config.Config
	mgr      *manager.Manager
	streamer *logstream.Streamer
	logger   zerolog.Logger
	router   chi.Router
}

// NewServer builds the router: public /health and /metrics, token-guarded
// /api/* when a token is configured.
func NewServer(cfg config.Config, mgr *manager.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		mgr:      mgr,
		streamer: logstream.New(mgr.Runtime()),
		logger:   log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler(mgr))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/instances", s.handleListInstances)
		r.Post("/launch", s.handleLaunch)
		r.Post("/stop", s.handleStop)
		r.Post("/destroy", s.handleDestroy)
		r.Get("/stats/{id}", s.handleStats)
		r.Get("/logs/{id}", s.handleLogs)
		r.HandleFunc("/logs/{id}/stream", s.handleLogStream)

		r.Get("/files/{id}", s.handleListFiles)
		r.Get("/files/{id}/{name}", s.handleGetFile)
		r.Put("/files/{id}/{name}", s.handlePutFile)
	})

	s.router = r
	return s
}

// Handler returns the root handler for the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.router
}
