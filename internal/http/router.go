package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/shopcart/internal/account"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Service        CartService
	Users          account.UserStore
	JWTSecret      []byte
	Logger         zerolog.Logger
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Service)

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/api/health", Health(cfg.HealthChecks))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(Auth(cfg.JWTSecret, cfg.Users))

		r.Get("/", cartHandler.GetCart)
		r.Post("/", cartHandler.AddItem)
		r.Delete("/", cartHandler.ClearCart)
		r.With(AdminOnly).Get("/all", cartHandler.ListCarts)
		r.Put("/{productId}", cartHandler.UpdateItem)
		r.Delete("/{productId}", cartHandler.RemoveItem)
	})

	return otelhttp.NewHandler(r, "shopcart",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Health runs every check with a short deadline and reports 503 when any fails.
func Health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				zerolog.Ctx(r.Context()).Warn().Ctx(ctx).Err(err).Str("check", name).Msg("health check failed")
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		respondJSON(w, r, status, Envelope{
			Success: status == http.StatusOK,
			Data:    map[string]any{"checks": results},
		})
	}
}
