package rest

import (
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

type RouterDeps struct {
	Handler  *Handler
	Health   *HealthHandler
	Verifier security.AccessTokenVerifier

	// Limiter is the shared redis limiter; nil falls back to an in-process one.
	Limiter   domain.RateLimiter
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	CORSAllowedOrigins []string
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}
	if d.Health == nil {
		d.Health = NewHealthHandler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", d.Health.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if d.RLEnabled {
			if d.Limiter != nil {
				r.Use(RateLimitMiddleware(d.Limiter, d.RLLimit, d.RLWindow))
			} else {
				r.Use(httprate.LimitByIP(d.RLLimit, d.RLWindow))
			}
		}
		r.Use(AuthMiddleware(d.Verifier))

		r.Post("/events/search", d.Handler.Search)
		r.Get("/events/{eventID}", d.Handler.GetEvent)

		r.Get("/events/{eventID}/registrations", d.Handler.RegistrationStatus)
		r.Post("/events/{eventID}/registrations", d.Handler.Register)
		r.Delete("/events/{eventID}/registrations", d.Handler.Cancel)

		r.Get("/me/events", d.Handler.MyEvents)
		r.Get("/me/discover", d.Handler.Discover)
		r.Get("/me/filter", d.Handler.GetFilter)
		r.Put("/me/filter", d.Handler.PutFilter)

		r.Get("/organizer/events", d.Handler.OrganizerEvents)
	})

	return r
}
