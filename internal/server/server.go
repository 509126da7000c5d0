package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/tasktrek/internal/auth"
	"github.com/dukerupert/tasktrek/internal/config"
	"github.com/dukerupert/tasktrek/internal/handler"
	"github.com/dukerupert/tasktrek/internal/middleware"
	"github.com/dukerupert/tasktrek/internal/store"
	"github.com/dukerupert/tasktrek/internal/task"
	ws "github.com/dukerupert/tasktrek/internal/websocket"
)

type Server struct {
	db          *sqlx.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	taskH       *handler.TaskHandler
	rateLimiter *middleware.RateLimiter
	authLimit   int
	authWindow  time.Duration
	logger      *slog.Logger
}

func New(db *sqlx.DB, cfg config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	taskStore := store.NewTaskStore(db)

	authSvc, err := auth.NewService(userStore, auth.Config{
		BcryptCost:   cfg.BcryptCost,
		StoreTimeout: cfg.StoreTimeout,
	}, logger.With("component", "auth"))
	if err != nil {
		return nil, err
	}
	taskSvc := task.NewService(taskStore, cfg.StoreTimeout, logger.With("component", "task"))

	authWindow := cfg.AuthRateWindow
	if authWindow <= 0 {
		authWindow = time.Minute
	}

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(authSvc, logger.With("component", "auth_handler")),
		taskH:       handler.NewTaskHandler(taskSvc, hub, logger.With("component", "task_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		authLimit:   cfg.AuthRateLimit,
		authWindow:  authWindow,
		logger:      logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))

	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("PUT /api/tasks", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks", s.taskH.Delete)

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.authLimit, s.authWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
