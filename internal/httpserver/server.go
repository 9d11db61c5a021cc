package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/blackmichael/novelle/internal/config"
	"github.com/blackmichael/novelle/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

// FeedReader assembles feed pages.
type FeedReader interface {
	GetPage(ctx context.Context, req domain.PageRequest) (*domain.FeedPage, error)
}

// Interactions toggles likes and saves and reports their stats.
type Interactions interface {
	Add(ctx context.Context, kind domain.InteractionKind, target, viewer string) (*domain.InteractionStats, error)
	Remove(ctx context.Context, kind domain.InteractionKind, target, viewer string) (*domain.InteractionStats, error)
	Stats(ctx context.Context, target, viewer string) (*domain.InteractionStats, error)
}

// QuoteCreator stores reader-submitted quotes.
type QuoteCreator interface {
	CreateQuote(ctx context.Context, creator string, book domain.NewBook, quote domain.NewQuote) (*domain.CreatedQuote, error)
}

// Observer receives request and feed outcomes for metrics.
type Observer interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
	FeedPage(err error)
}

// Deps are the services the server routes to. Stream, Metrics, Limiter and
// Observer are optional.
type Deps struct {
	Feed         FeedReader
	Interactions Interactions
	Content      QuoteCreator
	Auth         *Authenticator

	Stream   http.Handler
	Metrics  http.Handler
	Limiter  RateLimiter
	Observer Observer
}

// Server is the HTTP server for the feed, interaction and content endpoints.
type Server struct {
	cfg        *config.Config
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server routing to deps.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler with CORS, request ids and logging.
func (s *Server) Handler() http.Handler {
	auth := s.deps.Auth
	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return auth.Required(limitViewer(s.deps.Limiter, s.logger, h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/posts", auth.Optional(s.handleGetPosts))
	mux.HandleFunc("GET /api/interactions/quotes/{quoteId}", auth.Optional(s.handleGetStats))
	mux.HandleFunc("POST /api/interactions/quotes/{quoteId}/like", limited(s.handleToggle(domain.ActionAdd, domain.InteractionLike)))
	mux.HandleFunc("DELETE /api/interactions/quotes/{quoteId}/like", limited(s.handleToggle(domain.ActionRemove, domain.InteractionLike)))
	mux.HandleFunc("POST /api/interactions/quotes/{quoteId}/save", limited(s.handleToggle(domain.ActionAdd, domain.InteractionSave)))
	mux.HandleFunc("DELETE /api/interactions/quotes/{quoteId}/save", limited(s.handleToggle(domain.ActionRemove, domain.InteractionSave)))
	mux.HandleFunc("POST /api/user-content/quotes", auth.Required(s.handleCreateQuote))
	if s.deps.Stream != nil {
		mux.Handle("GET /api/interactions/stream", s.deps.Stream)
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(withRequestID(withLogging(s.logger, s.deps.Observer, mux)))
}

// WrapHandler wraps the root handler, for example with tracing middleware.
func (s *Server) WrapHandler(wrap func(http.Handler) http.Handler) {
	s.httpServer.Handler = wrap(s.httpServer.Handler)
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errType,
		"message": message,
	})
}

// writeDomainError maps service errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", "not found")
	case errors.Is(err, domain.ErrFeedUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Unavailable", "feed unavailable")
	case errors.Is(err, domain.ErrSequenceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Unavailable", "id sequence unavailable")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "internal error")
	}
}

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withLogging(logger *slog.Logger, observer Observer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		elapsed := time.Since(start)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", elapsed,
			"request_id", requestIDFrom(r.Context()),
		)
		if observer != nil {
			observer.ObserveHTTP(r.Method, r.Pattern, wrapped.status, elapsed)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the stream endpoint upgrade to a websocket through the logger.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
