package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/playwatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/playwatch/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/playwatch/internal/httpserver/mw"
)

func init() { Register(registerUsers) }

func registerUsers(r chi.Router, d deps.Deps) {
	r.Route("/api/users/{key}", func(r chi.Router) {
		r.Use(
			mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			mw.RateLimit(mw.RateLimitConfig{
				Burst:        d.RateLimitBurst,
				RefillPerMin: d.RateLimitPerMinute,
				MaxEntries:   10_000,
				TrustProxy:   d.TrustProxy,
			}),
		)
		r.Post("/run", handlers.Run(d))
		r.Get("/status", handlers.Status(d))
	})
}
