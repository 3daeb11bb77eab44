package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/infrastructure/http/handler"
	"github.com/fixora/tollgate/infrastructure/http/middleware"
	"github.com/fixora/tollgate/infrastructure/http/response"
	"github.com/fixora/tollgate/infrastructure/http/sse"
	"github.com/fixora/tollgate/infrastructure/service/logger"
	"github.com/fixora/tollgate/infrastructure/service/metrics"
	apperr "github.com/fixora/tollgate/pkg/error"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Addr                 string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	CorrelationIDHeader  string
	EnableRequestLog     bool
	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
}

// Dependencies are the use cases and optional infrastructure the router
// serves. Verifier, Admin and Logger are required; nil RateLimit, Streamer or
// Metrics leave the matching routes unregistered.
type Dependencies struct {
	Verifier  inbound.TransferVerifier
	Admin     inbound.AdminUseCase
	RateLimit *middleware.RateLimitMiddleware
	Streamer  *sse.Streamer
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Server represents the HTTP server
type Server struct {
	addr   string
	logger logger.Logger
	server *http.Server
}

func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		addr:   cfg.Addr,
		logger: deps.Logger,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(cfg, deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// NewRouter builds the full route table with its middleware stack.
func NewRouter(cfg ServerConfig, deps Dependencies) http.Handler {
	transferHandler := handler.NewTransferHandler(deps.Verifier, deps.Logger)
	adminHandler := handler.NewAdminHandler(deps.Admin)

	var observer middleware.RequestObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CorrelationIDMiddleware(cfg.CorrelationIDHeader))
	router.Use(middleware.RequestLogging(deps.Logger, observer, cfg.EnableRequestLog))

	var verify http.Handler = http.HandlerFunc(transferHandler.VerifyTransfer)
	if deps.RateLimit != nil {
		verify = deps.RateLimit.RateLimit(verify)
	}
	router.Handle("/v1/verify-transfer", verify).Methods(http.MethodPost)

	admin := router.PathPrefix("/v1/admin").Subrouter()
	admin.Use(middleware.AdminCredentials)
	admin.HandleFunc("/pending", adminHandler.ListPending).Methods(http.MethodGet)
	admin.HandleFunc("/pending/{holdId}", adminHandler.Decide).Methods(http.MethodPost)
	admin.HandleFunc("/reset", adminHandler.Reset).Methods(http.MethodPost)
	admin.HandleFunc("/audit", adminHandler.AuditLog).Methods(http.MethodGet)
	admin.HandleFunc("/audit/verify", adminHandler.VerifyAudit).Methods(http.MethodGet)
	admin.HandleFunc("/status", adminHandler.Status).Methods(http.MethodGet)
	admin.HandleFunc("/session", adminHandler.OpenSession).Methods(http.MethodPost)
	if deps.Streamer != nil {
		stream := adminHandler.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The stream outlives the server write timeout.
			_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
			deps.Streamer.HandleSSE(w, r)
		}))
		admin.Handle("/events", stream).Methods(http.MethodGet)
	}

	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	var h http.Handler = router
	if cfg.CORSEnabled && len(cfg.CORSAllowedOrigins) > 0 {
		h = middleware.CORSMiddleware(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials)(h)
	}
	return h
}

func notFound(w http.ResponseWriter, r *http.Request) {
	response.Error(w, apperr.ErrNotFound.Status, apperr.ErrNotFound.Message)
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks until the server stops. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
