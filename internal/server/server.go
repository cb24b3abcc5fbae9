package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/manthanabc/EDAI-5/internal/ratelimit"
	"github.com/manthanabc/EDAI-5/internal/service/cases"
	"github.com/manthanabc/EDAI-5/internal/settings"
)

// Server is the EDAI HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, Reference, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Cases    *cases.Service
	Settings *settings.Resolver
	Pinger   Pinger
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	Reference ReferenceState
	MCPServer *mcpserver.MCPServer

	// Middlewares wrap the whole handler, first-registered outermost.
	Middlewares []func(http.Handler) http.Handler

	// AdminToken guards /v1/admin and /mcp. Empty disables them.
	AdminToken string

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte // Served at /openapi.yaml when set.
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Cases:               cfg.Cases,
		Settings:            cfg.Settings,
		Pinger:              cfg.Pinger,
		Reference:           cfg.Reference,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	// Each verdict costs three model calls; only that route is limited.
	verdictRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)
	adminOnly := requireAdmin(cfg.AdminToken)

	mux := http.NewServeMux()

	// Adjudication (rate limited by IP).
	mux.Handle("POST /v1/cases/{case_id}/verdict", verdictRL(http.HandlerFunc(h.HandleAdjudicate)))

	// Case reads.
	mux.HandleFunc("GET /v1/cases", h.HandleListCases)
	mux.HandleFunc("GET /v1/cases/{case_id}", h.HandleGetCase)
	mux.HandleFunc("GET /v1/cases/{case_id}/verdicts", h.HandleListVerdicts)
	mux.HandleFunc("GET /v1/cases/{case_id}/audit", h.HandleAuditTrail)

	// Admin.
	mux.Handle("POST /v1/cases", adminOnly(http.HandlerFunc(h.HandleCreateCase)))
	mux.Handle("GET /v1/admin/settings", adminOnly(http.HandlerFunc(h.HandleGetSettings)))
	mux.Handle("PUT /v1/admin/settings", adminOnly(http.HandlerFunc(h.HandlePutSettings)))

	// MCP StreamableHTTP transport (admin token).
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", adminOnly(mcpserver.NewStreamableHTTPServer(cfg.MCPServer)))
	}

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → actor → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = actorMiddleware(handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
