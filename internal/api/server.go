// Package api serves the JSON and SSE HTTP surface of the archive.
//
// Endpoints:
//   - POST   /api/v1/chat                    streaming chat turn (SSE)
//   - GET    /api/v1/sessions                list sessions
//   - POST   /api/v1/sessions                create session
//   - GET    /api/v1/sessions/{id}           get session
//   - GET    /api/v1/sessions/{id}/messages  get transcript
//   - PATCH  /api/v1/sessions/{id}           rename session
//   - POST   /api/v1/sessions/{id}/archive   summarize into memory and compact
//   - DELETE /api/v1/sessions/{id}           delete session
//   - GET    /health, GET /ready             probes (outside the middleware stack)
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreweaver/loreweaver/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   log.Logger
	Engine   turnRunner    // Required
	Sessions sessionStore  // Required
	Titler   titler        // Optional: nil disables automatic session titles
	Archiver archiver      // Optional: nil disables the archive endpoint
	Pool     *pgxpool.Pool // Optional: nil degrades /ready to a liveness check

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
	IsDev       bool     // Disables HSTS (no TLS in dev)
}

// Server is the HTTP server for the archive API.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("chat engine is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	sh := &sessionHandler{
		store:    cfg.Sessions,
		archiver: cfg.Archiver,
		logger:   logger,
	}

	ch := &chatHandler{
		engine: cfg.Engine,
		store:  cfg.Sessions,
		titler: cfg.Titler,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat", ch.send)

	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("POST /api/v1/sessions", sh.create)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", sh.rename)
	mux.HandleFunc("POST /api/v1/sessions/{id}/archive", sh.archive)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
