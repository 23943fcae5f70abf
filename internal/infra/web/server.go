package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"saas-subscription-backend/internal/infra/logging"
	red "saas-subscription-backend/internal/infra/redis"
	"saas-subscription-backend/internal/usecase"
)

// RateLimiter is what the purchase endpoint needs from the Redis limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	paymentUC usecase.PaymentUseCase
	subUC     usecase.SubscriptionUseCase
	planUC    usecase.PlanUseCase
	memberUC  usecase.MemberUseCase
	auth      *AuthManager
	limiter   RateLimiter

	purchasePerMinute int
	pollMaxAttempts   int
	pollInterval      time.Duration

	validate *validator.Validate
	log      *zerolog.Logger
}

type ServerOptions struct {
	PurchasePerMinute int
	PollMaxAttempts   int
	PollInterval      time.Duration
}

func NewServer(
	paymentUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	planUC usecase.PlanUseCase,
	memberUC usecase.MemberUseCase,
	auth *AuthManager,
	limiter RateLimiter,
	opts ServerOptions,
	logger *zerolog.Logger,
) *Server {
	if opts.PurchasePerMinute <= 0 {
		opts.PurchasePerMinute = 10
	}
	if opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = 30
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Server{
		paymentUC:         paymentUC,
		subUC:             subUC,
		planUC:            planUC,
		memberUC:          memberUC,
		auth:              auth,
		limiter:           limiter,
		purchasePerMinute: opts.PurchasePerMinute,
		pollMaxAttempts:   opts.PollMaxAttempts,
		pollInterval:      opts.PollInterval,
		validate:          validator.New(),
		log:               logger,
	}
}

// Router assembles the full HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Gateway-facing; no auth, must always ack fast.
	r.Post("/payments/webhook", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)
		r.Post("/members", s.handleRegisterMember)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.With(s.rateLimitPurchase).Post("/purchases", s.handleInitiatePurchase)
			r.Get("/payments", s.handlePaymentHistory)
			r.Get("/payments/{paymentID}", s.handlePaymentStatus)
			r.Get("/payments/{paymentID}/wait", s.handlePaymentWait)
			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Post("/subscriptions/{subscriptionID}/cancel", s.handleCancelSubscription)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// rateLimitPurchase caps purchase attempts per member per minute.
func (s *Server) rateLimitPurchase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			key := red.MemberActionKey(MemberID(r.Context()), "purchase")
			ok, err := s.limiter.Allow(r.Context(), key, s.purchasePerMinute, time.Minute)
			if err != nil {
				// Redis trouble should not block purchases.
				s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			} else if !ok {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many purchase attempts, slow down"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
