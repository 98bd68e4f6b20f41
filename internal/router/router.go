// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/handler"
)

type Handlers struct {
	Health   *handler.HealthHandler
	Projects *handler.ProjectHandler
	Donation *handler.DonationHandler
	Callback *handler.CallbackHandler
}

// SetupRoutes wires the public API, the provider callbacks and metrics.
// donateLimiter wraps POST /donations only; nil disables it.
func SetupRoutes(h Handlers, donateLimiter func(http.Handler) http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.HandleHealth)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.Projects.HandleList)
			r.Get("/{id}", h.Projects.HandleGet)
		})

		r.Route("/donations", func(r chi.Router) {
			r.Get("/status", h.Donation.HandleStatus)
			r.Group(func(r chi.Router) {
				if donateLimiter != nil {
					r.Use(donateLimiter)
				}
				r.Post("/", h.Donation.HandleDonate)
			})
		})

		// M-Pesa calls these; acks go out only after reconciliation.
		r.Route("/callbacks/mpesa", func(r chi.Router) {
			r.Post("/stk", h.Callback.HandleMpesaSTKCallback)
			r.Post("/timeout", h.Callback.HandleMpesaTimeout)
		})
	})

	return r
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))
		})
	}
}
