package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"edupay-service/internal/infra/redis"
)

// Server is the HTTP edge: routing, auth, rate limiting and lifecycle.
type Server struct {
	http *http.Server
	log  *zerolog.Logger
}

type ServerDeps struct {
	Auth     *AuthManager
	Limiter  *redis.RateLimiter
	Payments *PaymentHandlers
	Subs     *SubscriptionHandlers

	// InitiateLimit is requests per minute per user on payment initiation.
	InitiateLimit int
}

func NewServer(port int, deps ServerDeps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(Recover(&l))
	r.Use(RequestLog(&l))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payment", func(r chi.Router) {
			// Public: fee lookup and the provider callback.
			r.Get("/fee", deps.Payments.Fee)
			r.Post("/webhook", deps.Payments.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(Auth(deps.Auth))
				r.With(RateLimit(deps.Limiter, "initiate_payment", deps.InitiateLimit, time.Minute, &l)).
					Post("/initiate", deps.Payments.Initiate)
				r.Get("/status/{transactionId}", deps.Payments.Status)
			})

			r.Group(func(r chi.Router) {
				r.Use(Auth(deps.Auth), AdminOnly())
				r.Get("/admin/revenue", deps.Payments.Revenue)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/plans", deps.Subs.Plans)

			r.Group(func(r chi.Router) {
				r.Use(Auth(deps.Auth))
				r.Post("/subscribe", deps.Subs.Subscribe)
				r.Get("/my-subscriptions", deps.Subs.MySubscriptions)
				r.Get("/check-access", deps.Subs.CheckAccess)
				r.Post("/ai-usage", deps.Subs.RecordAIUsage)
				r.Put("/{id}/cancel", deps.Subs.Cancel)
			})

			r.Group(func(r chi.Router) {
				r.Use(Auth(deps.Auth), AdminOnly())
				r.Get("/admin/all", deps.Subs.AdminListAll)
				r.Post("/admin/expire-check", deps.Subs.AdminExpireCheck)
			})
		})
	})

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: &l,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
