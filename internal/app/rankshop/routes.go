// Package rankshop собирает HTTP-приложение магазина рангов.
package rankshop

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/rankshop/internal/http/handlers/auth/discord"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/health"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/listing"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/purchase/history"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/purchase/rank"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/purchase/upgrade"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/user/link"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/user/preferences"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/user/profile"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/user/ranks"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/user/settings"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/user/unlink"
	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	purchaseservice "github.com/magabrotheeeer/rankshop/internal/services/purchase"
	userservice "github.com/magabrotheeeer/rankshop/internal/services/user"
)

// Deps — зависимости маршрутов.
type Deps struct {
	Logger    *slog.Logger
	Catalog   listing.Source
	Purchases *purchaseservice.Service
	Users     *userservice.Service
	Login     discord.Service
	Session   discord.Session
	Tokens    middlewarectx.TokenParser
	Limiter   *middlewarectx.RateLimiter
	Checks    map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	auth := discord.New(logger, d.Login, d.Session)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/catalog/ranks", listing.NewRanks(logger, d.Catalog).ServeHTTP)
		r.Get("/catalog/upgrades", listing.NewUpgrades(logger, d.Catalog).ServeHTTP)
		r.Get("/auth/discord", auth.Login)
		r.Get("/auth/discord/callback", auth.Callback)
		r.Get("/auth/logout", auth.Logout)

		// Группа с проверкой сессии
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.Auth(d.Tokens, d.Session.CookieName, logger))

			r.Get("/user", profile.New(logger, d.Users).ServeHTTP)
			r.Get("/user/ranks", ranks.New(logger, d.Purchases).ServeHTTP)
			r.Post("/user/settings", settings.New(logger, d.Users).ServeHTTP)
			r.Post("/user/minecraft", link.New(logger, d.Users).ServeHTTP)
			r.Delete("/user/minecraft", unlink.New(logger, d.Users).ServeHTTP)
			r.Patch("/user/preferences", preferences.New(logger, d.Users).ServeHTTP)
			r.Get("/purchases", history.New(logger, d.Purchases).ServeHTTP)

			r.Group(func(r chi.Router) {
				if d.Limiter != nil {
					r.Use(d.Limiter.Middleware(logger))
				}
				r.Post("/purchase/rank", rank.New(logger, d.Purchases).ServeHTTP)
				r.Post("/purchase/upgrade", upgrade.New(logger, d.Purchases).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, d.Checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
