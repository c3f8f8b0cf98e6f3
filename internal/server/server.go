package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/cityhunt/internal/engine"
	"github.com/playperu/cityhunt/internal/events"
	"github.com/playperu/cityhunt/internal/generator"
	"github.com/playperu/cityhunt/internal/hunt"
	"github.com/playperu/cityhunt/internal/leaderboard"
	"github.com/playperu/cityhunt/internal/progress"
)

// Store is the slice of storage the HTTP layer reads and the generator
// writes.
type Store interface {
	progress.Store
	generator.ChallengeSaver
}

// Leaderboard ranks players within a session.
type Leaderboard interface {
	Top(ctx context.Context, sessionID string, n int) ([]leaderboard.Entry, error)
}

// Deps are the collaborators the API handlers need. Leaderboard may be nil.
type Deps struct {
	Store       Store
	Generator   *generator.Generator
	Dispatcher  *engine.Dispatcher
	Broker      *events.Broker
	Leaderboard Leaderboard
	HostKeyHash string
	Now         func() time.Time
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New builds the HTTP server. mount lets the caller attach handlers that live
// outside this package, such as health checks and WebSocket feeds.
func New(addr string, logger *slog.Logger, deps Deps, mount func(r chi.Router)) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, deps)
	if mount != nil {
		mount(r)
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				level := slog.LevelInfo
				if ww.Status() >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.Log(r.Context(), level, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, hunt.ErrChallengeNotFound):
		return http.StatusNotFound, "challenge not found"
	case errors.Is(err, hunt.ErrAlreadyFinalized):
		return http.StatusConflict, "challenge already finalized"
	case errors.Is(err, hunt.ErrStorageConflict):
		return http.StatusConflict, "concurrent update, retry the submission"
	case errors.Is(err, hunt.ErrGraderUnavailable):
		return http.StatusServiceUnavailable, "grader unavailable, retry later"
	case errors.Is(err, hunt.ErrEmptyCatalog):
		return http.StatusUnprocessableEntity, "no challenge template matches the request"
	case errors.Is(err, hunt.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func writeEngineError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	if hunt.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, msg)
}
