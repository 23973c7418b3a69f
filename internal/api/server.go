package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/conversation"
	"github.com/djobea/djobea-ai/internal/llm"
	"github.com/djobea/djobea-ai/internal/notify"
	"github.com/djobea/djobea-ai/internal/scheduler"
	"github.com/djobea/djobea-ai/internal/storage"
)

type Server struct {
	cfg    config.ServerConfig
	store  storage.Storage
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

// Deps carries the wired components the handlers serve.
type Deps struct {
	Store        storage.Storage
	Engine       *conversation.Engine
	Queue        *notify.Service
	Supervisor   *scheduler.Supervisor
	Tracker      *llm.HealthTracker
	HistoryLimit int
}

func NewServer(cfg config.ServerConfig, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		store: deps.Store,
		log:   log,
	}
	s.router = s.buildRouter(deps)
	return s
}

func (s *Server) buildRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	chatHandler := NewChatHandler(deps.Engine, deps.Store, deps.Queue, deps.HistoryLimit, s.log)
	ntfHandler := NewNotificationHandler(deps.Store)
	reqHandler := NewRequestHandler(deps.Store, deps.Queue, deps.Supervisor, s.log)
	provHandler := NewProviderHandler(deps.Tracker)
	statsHandler := NewStatsHandler(deps.Store, deps.Supervisor)

	r.Get("/health", statsHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Conversation
		r.Post("/chat", chatHandler.Chat)
		r.Get("/conversations/{session_id}", chatHandler.History)

		// Notifications
		r.Get("/notifications", ntfHandler.Poll)
		r.Get("/notifications/{id}", ntfHandler.Get)
		r.Get("/notifications/{id}/attempts", ntfHandler.ListAttempts)
		r.Post("/notifications/{id}/read", ntfHandler.MarkRead)
		r.Post("/notifications/clear", ntfHandler.Clear)
		r.Post("/notifications/requeue", ntfHandler.Requeue)

		// Service requests (synced from the request-lifecycle service)
		r.Put("/requests/{id}", reqHandler.Sync)
		r.Get("/requests/{id}", reqHandler.Get)

		// Providers
		r.Get("/providers", provHandler.Status)
		r.Post("/providers/{name}/reset", provHandler.Reset)

		// Operations
		r.Get("/jobs", statsHandler.Jobs)
		r.Get("/stats", statsHandler.Stats)
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
