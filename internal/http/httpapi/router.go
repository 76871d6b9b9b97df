package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"brandkit/internal/http/handlers"
	"brandkit/internal/middleware"
)

type Options struct {
	JWTSecret       string
	IDTokens        middleware.IDTokenVerifier
	AllowedOrigins  []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	// StaticDir, when set, is served under /static for the file storage driver.
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, opts.IDTokens))

		r.Get("/models", app.ListModels)

		r.Route("/generations", func(r chi.Router) {
			r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.Generate)
			r.Get("/", app.History)
			r.Get("/{id}", app.GetGeneration)
			r.Get("/{id}/archive", app.Archive)
		})

		r.Route("/generation-jobs", func(r chi.Router) {
			r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.EnqueueJob)
			r.Get("/{id}", app.GetJob)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", app.Notifications)
			r.Post("/read", app.MarkNotificationsRead)
		})
	})

	return r
}
