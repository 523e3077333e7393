package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"harambee/internal/http/handlers"
	"harambee/internal/middleware"
)

// Options carries the router's cross-cutting configuration.
type Options struct {
	RateLimitPerMin int
	CORSOrigins     []string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(app.Logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(middleware.CORS(opts.CORSOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/donations", func(r chi.Router) {
		create := r.With(middleware.Origin(opts.CountryLookup))
		if opts.RateLimitPerMin > 0 {
			create = create.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		create.Post("/", app.DonationsCreate)

		r.Get("/{id}", app.DonationsGet)
		r.Get("/{id}/status", app.DonationsStatus)
	})

	r.Post("/v1/webhooks/{provider}", app.WebhookReceive)

	return r
}
