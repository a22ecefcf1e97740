package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"dreamboard/internal/http/handlers"
	"dreamboard/internal/middleware"
)

// Options configures the router.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// WebhookLimiter throttles notifications per provider and client address.
	WebhookLimiter middleware.Limiter
	CountryLookup  middleware.CountryLookup
	// Sandbox exposes the simulated checkout of the sandbox provider.
	Sandbox bool
	Logger  zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.ClientInfo(opts.CountryLookup),
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		chimw.Timeout(60*time.Second),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.Sandbox {
		r.Get("/sandbox/pay", app.SandboxPay)
	}

	r.Route("/webhooks/{provider}", func(r chi.Router) {
		if opts.WebhookLimiter != nil {
			r.Use(middleware.RateLimit(opts.WebhookLimiter, webhookKey, opts.Logger))
		}
		r.Post("/", app.Webhook)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/contributions", app.CreateContribution)
		r.Get("/dream-boards/{id}", app.DreamBoardSummary)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret, middleware.RolePartner, middleware.RoleAdmin))
			r.Post("/dream-boards/{id}/close", app.CloseDreamBoard)
			r.Get("/dream-boards/{id}/payouts", app.ListDreamBoardPayouts)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret, middleware.RoleAdmin))
			r.Post("/payouts/{id}/execute", app.ExecutePayout)
			r.Post("/payouts/{id}/confirm", app.ConfirmPayout)
			r.Post("/payouts/{id}/fail", app.FailPayout)
		})
	})

	return r
}

func webhookKey(r *http.Request) string {
	return "ratelimit:webhook:" + chi.URLParam(r, "provider") + ":" + middleware.ClientIP(r)
}
