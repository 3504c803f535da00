package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"membership-settlement/internal/config"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/api"
	"membership-settlement/internal/infra/redis"
	"membership-settlement/internal/usecase"
)

// Server exposes the operator API: session management, the two settlement
// entry points, and a read-only lineage view. Its only observable effect is
// record state; rendering is someone else's job.
type Server struct {
	settlementUC usecase.SettlementUseCase
	orders       repository.OrderRepository
	memberships  repository.MembershipRepository
	subs         repository.SubscriptionRepository
	locker       redis.Locker
	auth         *AuthManager
	cfg          *config.WebConfig
	log          *zerolog.Logger
}

func NewServer(
	settlementUC usecase.SettlementUseCase,
	orders repository.OrderRepository,
	memberships repository.MembershipRepository,
	subs repository.SubscriptionRepository,
	locker redis.Locker,
	cfg *config.WebConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		settlementUC: settlementUC,
		orders:       orders,
		memberships:  memberships,
		subs:         subs,
		locker:       locker,
		auth:         NewAuthManager(cfg.JWTSecret, cfg.SecureCookie, cfg.SessionTTL),
		cfg:          cfg,
		log:          logger,
	}
}

// Router assembles the chi router with the shared middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", s.handleSessionCreate)
		r.Delete("/session", s.handleSessionDelete)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)
			r.Get("/orders/{id}", s.handleOrderView)
			r.Post("/orders/{id}/settle-transfer", s.handleSettle(s.settlementUC.CompleteProductBankTransfer))
			r.Post("/extension-orders/{id}/settle-transfer", s.handleSettle(s.settlementUC.CompleteExtensionBankTransfer))
		})
	})

	return api.Chain(r,
		api.TraceID(),
		api.RequestLog(s.log),
		api.Recover(s.log),
		api.Timeout(30*time.Second),
	)
}

func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
