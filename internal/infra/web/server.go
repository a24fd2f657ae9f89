package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-agent-billing/internal/domain/ports/adapter"
	"ai-agent-billing/internal/domain/ports/repository"
	"ai-agent-billing/internal/usecase"
)

// Server hosts the public webhook ingress and the admin API.
type Server struct {
	processor usecase.WebhookProcessorUseCase
	ledger    usecase.CreditLedgerUseCase
	registry  adapter.GatewayRegistry
	queue     repository.WebhookQueueRepository
	settings  *usecase.SettingsProvider
	auth      *AuthManager
	log       *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(
	port int,
	processor usecase.WebhookProcessorUseCase,
	ledger usecase.CreditLedgerUseCase,
	registry adapter.GatewayRegistry,
	queue repository.WebhookQueueRepository,
	settings *usecase.SettingsProvider,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		processor: processor,
		ledger:    ledger,
		registry:  registry,
		queue:     queue,
		settings:  settings,
		auth:      auth,
		log:       &webLog,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/{gateway}", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/queue", s.handleListQueue)
		r.Post("/queue/{id}/retry", s.handleRetryQueueItem)
		r.Post("/payments/confirm", s.handleConfirmPayment)
	})

	return r
}

// adminAuth guards the admin API with a bearer JWT.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("Starting HTTP server")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpSrv.Shutdown(ctx)
}
