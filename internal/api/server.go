// Package api exposes the chat service over HTTP: JSON chat with SSE
// streaming, chat persistence CRUD, the joke dataset, vector store
// operations and health probes.
//
// Route protection is an opaque gate: an Authenticator answers whether
// a user is present, and unauthenticated requests get a bare 401. The
// middleware stack (outermost first) is recovery, request ID, logging,
// CORS, per-IP rate limiting, auth. Health probes bypass the stack.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/jokes"
	"github.com/jaif/hal/internal/knowledge"
	"github.com/jaif/hal/internal/log"
	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Registry      *chains.Registry      // Required
	Generator     model.Generator       // Required: used for summaries
	Auth          Authenticator         // Required
	Sessions      *session.Store        // Optional: nil disables chat persistence
	Jokes         *jokes.Store          // Optional: nil disables the joke routes
	JokeGenerator *chains.JokeGenerator // Optional: nil disables joke generation
	Knowledge     *knowledge.Store      // Optional: nil disables document routes
	Pool          *pgxpool.Pool         // Optional: nil disables pool stats in /ready
	CORSOrigins   []string              // Allowed origins for CORS
	TrustProxy    bool                  // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst     int                   // Rate limiter burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("chain registry is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	ch := &chatHandler{
		registry:  cfg.Registry,
		generator: cfg.Generator,
		sessions:  cfg.Sessions,
		logger:    logger,
	}
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	if cfg.Sessions != nil {
		sh := &chatsHandler{store: cfg.Sessions, generator: cfg.Generator, logger: logger}
		mux.HandleFunc("GET /api/v1/chats", sh.list)
		mux.HandleFunc("POST /api/v1/chats", sh.create)
		mux.HandleFunc("GET /api/v1/chats/{id}", sh.get)
		mux.HandleFunc("GET /api/v1/chats/{id}/messages", sh.messages)
		mux.HandleFunc("POST /api/v1/chats/{id}/summary", sh.summarize)
		mux.HandleFunc("DELETE /api/v1/chats/{id}", sh.delete)
	}

	if cfg.Jokes != nil {
		jh := &jokesHandler{store: cfg.Jokes, generator: cfg.JokeGenerator, logger: logger}
		mux.HandleFunc("GET /api/v1/jokes", jh.list)
		mux.HandleFunc("POST /api/v1/jokes", jh.save)
		mux.HandleFunc("DELETE /api/v1/jokes/{id}", jh.delete)
		if cfg.JokeGenerator != nil {
			mux.HandleFunc("POST /api/v1/jokes/generate", jh.generate)
		}
	}

	if cfg.Knowledge != nil {
		dh := &documentsHandler{store: cfg.Knowledge, logger: logger}
		mux.HandleFunc("POST /api/v1/documents", dh.add)
		mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.delete)
		mux.HandleFunc("GET /api/v1/search", dh.search)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID sits before Logging so request_id is available in log
	// attributes; CORS sits before RateLimit so preflight OPTIONS gets
	// proper headers.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Auth)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
