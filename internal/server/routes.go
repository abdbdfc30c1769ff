package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/appid"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
	"github.com/mou514/FinanceMate-sub000/internal/server/handlers"
	servermw "github.com/mou514/FinanceMate-sub000/internal/server/middleware"
)

func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if s.deps.Receipts != nil {
		receipts := &handlers.ReceiptHandler{Service: s.deps.Receipts, MaxUploadBytes: s.deps.MaxUploadBytes}
		s.router.Route("/receipts", func(r chi.Router) {
			r.Use(servermw.RequireUserID)
			r.Get("/quota", receipts.Quota)
			r.Group(func(r chi.Router) {
				if s.deps.Throttle != nil {
					r.Use(s.deps.Throttle.Limit)
				}
				r.Post("/process", receipts.ProcessImage)
				r.Post("/process-audio", receipts.ProcessAudio)
			})
		})
	}

	if exp := s.deps.Expenses; exp != nil {
		s.router.Group(func(r chi.Router) {
			r.Use(servermw.RequireUserID)
			if exp.Expenses != nil {
				r.Post("/expenses", exp.Create)
			}
			if exp.Reader != nil {
				r.Get("/expenses", exp.List)
			}
			if exp.Notifications != nil {
				r.Get("/notifications", exp.ListNotifications)
				r.Post("/notifications/{id}/read", exp.MarkRead)
			}
		})
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the signal endpoint when FINANCEMATE_ADMIN_TOKEN is set.
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.Get().Prefix()
	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
