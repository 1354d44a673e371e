package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshychat/meshy/internal/config"
	"github.com/meshychat/meshy/internal/orchestrator"
	"github.com/meshychat/meshy/internal/stats"
	"github.com/meshychat/meshy/internal/tracing"
)

const ReadTimeout = 30 * time.Second

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
	hub    *Hub
}

// New assembles the router. workers is the worker-pool attach point and may
// be nil when the pool is disabled; dbPing backs the readiness probe.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, hub *Hub, workers http.Handler, st *stats.Stats, dbPing func(context.Context) error) *Server {
	router := chi.NewRouter()

	if cfg.Otel.Enabled {
		router.Use(tracing.Middleware("meshy"))
	}
	router.Use(Recovery)
	router.Use(Logger)
	router.Use(CORS(cfg.Server.AllowedOrigins))
	router.Use(Metrics)

	healthH := NewHealthHandler(dbPing)
	router.Get("/health", healthH.Readiness)
	router.Get("/health/ready", healthH.Readiness)
	router.Get("/health/live", healthH.Liveness)
	router.Handle("/metrics", promhttp.Handler())

	wsH := NewWSHandler(hub, cfg)
	router.Get("/api/v1/ws", wsH.ServeHTTP)
	if workers != nil {
		router.Get("/api/v1/workers/ws", workers.ServeHTTP)
	}

	msgH := NewMessagesHandler(orch)
	attH := NewAttachmentsHandler(orch, cfg.Files.UploadsRoot)
	statsH := NewStatsHandler(st)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", msgH.Create)
		r.Get("/messages/{id}/translations/{language}", msgH.GetTranslation)
		r.Post("/translate", msgH.Translate)

		r.Post("/attachments/{id}/process", attH.Process)
		r.Get("/attachments/{id}", attH.Get)
		r.Post("/attachments/{id}/transcribe", attH.Transcribe)
		r.Post("/attachments/{id}/translate", attH.Translate)
		r.Get("/attachments/file/translated/{filename}", attH.ServeTranslatedFile)

		r.Get("/stats", statsH.Get)
	})

	return &Server{
		cfg:    cfg,
		router: router,
		hub:    hub,
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: ReadTimeout,
		// WriteTimeout stays zero: WebSocket connections outlive any
		// sane request deadline.
		WriteTimeout: 0,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
