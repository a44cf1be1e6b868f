// Package server exposes the chat pipeline and its supporting resources over
// HTTP and WebSocket.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raphaelgruber/chatblocks/internal/auth"
	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/store"
)

// DefaultChatMaxDuration bounds one streamed chat request.
const DefaultChatMaxDuration = 60 * time.Second

// Dependencies holds the services behind the HTTP surface.
type Dependencies struct {
	Store   store.Store
	Chat    *chat.Service
	Catalog *llm.Catalog
	// Tokens verifies bearer tokens. When nil, every request is attributed
	// to DevUserID.
	Tokens    *auth.Tokens
	DevUserID string
	// Limiter throttles chat requests. Optional.
	Limiter *RateLimiter
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins     []string
	ChatMaxDuration time.Duration
}

// Server routes requests to handlers.
type Server struct {
	deps   Dependencies
	opts   Options
	router chi.Router
}

// New builds the router.
func New(deps Dependencies, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.ChatMaxDuration <= 0 {
		opts.ChatMaxDuration = DefaultChatMaxDuration
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{deps: deps, opts: opts}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observe(s.deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"chat-id", "X-Vercel-AI-Data-Stream", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.deps.Tokens != nil {
			r.Use(auth.Middleware(s.deps.Tokens, s.deps.Logger))
		} else {
			r.Use(auth.Anonymous(s.deps.DevUserID))
		}

		r.Group(func(r chi.Router) {
			if s.deps.Limiter != nil {
				r.Use(s.deps.Limiter.Middleware("chat"))
			}
			r.Post("/chat", s.handleChat)
			r.Get("/chat/ws", s.handleChatWS)
		})
		r.Get("/chat", s.handleGetChat)
		r.Delete("/chat", s.handleDeleteChat)
		r.Get("/history", s.handleHistory)

		r.Get("/document", s.handleGetDocument)
		r.Post("/document", s.handleSaveDocument)
		r.Patch("/document", s.handleRewindDocument)
		r.Get("/suggestions", s.handleSuggestions)

		r.Get("/vote", s.handleListVotes)
		r.Patch("/vote", s.handleVote)

		r.Get("/models", s.handleModels)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// userID returns the caller set by the auth middleware.
func userID(r *http.Request) string {
	id, _ := auth.UserFromContext(r.Context())
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.deps.Logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Models())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot())
}
