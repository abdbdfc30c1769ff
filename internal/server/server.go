package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/mou514/FinanceMate-sub000/internal/errors"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
	"github.com/mou514/FinanceMate-sub000/internal/server/handlers"
	servermw "github.com/mou514/FinanceMate-sub000/internal/server/middleware"
)

// Deps are the services the HTTP API is built on. Nil services leave their
// routes unregistered.
type Deps struct {
	Receipts handlers.ReceiptService
	Expenses *handlers.ExpenseHandler
	Health   *handlers.HealthManager

	// MaxUploadBytes caps request bodies on the receipt routes.
	MaxUploadBytes int64

	// Throttle, when set, guards the receipt routes per client IP.
	Throttle *servermw.Throttle

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the receipts HTTP API.
type Server struct {
	router *chi.Mux
	http   *http.Server
	deps   Deps
}

// New wires middleware and routes. Order matters: the request id must exist
// before metrics log it, and Recovery sits inside metrics so a panic is
// still counted as a 500.
func New(host string, port int, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, servermw.RequestID, servermw.RequestMetrics, servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	if deps.Health == nil {
		deps.Health = handlers.NewHealthManager(handlers.CurrentVersion().App.Version)
	}
	handlers.SetHTTPErrorResponder(apperrors.RespondWithError)

	s := &Server{
		router: r,
		deps:   deps,
		http: &http.Server{
			Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
			Handler:      r,
			ReadTimeout:  orDefault(deps.ReadTimeout, 30*time.Second),
			WriteTimeout: orDefault(deps.WriteTimeout, 90*time.Second),
			IdleTimeout:  orDefault(deps.IdleTimeout, 120*time.Second),
		},
	}
	s.registerRoutes()
	return s
}

// Start blocks serving requests until Shutdown, returning
// http.ErrServerClosed in that case.
func (s *Server) Start() error {
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	}
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight extractions
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return s.http.Addr
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
