package rankshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	// Регистрация swagger-описания для /docs.
	_ "github.com/magabrotheeeer/rankshop/docs"

	"github.com/magabrotheeeer/rankshop/internal/cache"
	"github.com/magabrotheeeer/rankshop/internal/catalog"
	"github.com/magabrotheeeer/rankshop/internal/config"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/auth/discord"
	"github.com/magabrotheeeer/rankshop/internal/http/handlers/health"
	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rankshop/internal/lib/jwt"
	"github.com/magabrotheeeer/rankshop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/rankshop/internal/lib/secret"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/metrics"
	"github.com/magabrotheeeer/rankshop/internal/migrations"
	"github.com/magabrotheeeer/rankshop/internal/services/identity"
	"github.com/magabrotheeeer/rankshop/internal/services/purchase"
	"github.com/magabrotheeeer/rankshop/internal/services/ranksync"
	"github.com/magabrotheeeer/rankshop/internal/services/user"
	"github.com/magabrotheeeer/rankshop/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP-приложение магазина.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	amqp   *amqp.Connection
	ch     *amqp.Channel
}

// New поднимает зависимости и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "rankshop.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.RankSyncExchange, rabbitmq.RankSyncQueues())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sealer, err := secret.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	tokens := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)

	purchases := purchase.New(db, cat, cacheRedis, ranksync.NewPublisher(ch), m, logger)
	users := user.New(db)
	login := identity.New(cfg.DiscordOAuth, db, sealer, tokens, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:    logger,
		Catalog:   cat,
		Purchases: purchases,
		Users:     users,
		Login:     login,
		Session: discord.Session{
			CookieName:      cfg.JWTToken.CookieName,
			Secure:          cfg.JWTToken.SecureCookie,
			TTL:             tokens.TTL(),
			SuccessRedirect: cfg.DiscordOAuth.SuccessRedirect,
		},
		Tokens:  tokens,
		Limiter: middlewarectx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Checks: map[string]health.Check{
			"postgres": db.DB.PingContext,
			"redis":    cacheRedis.Ping,
		},
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		amqp:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Warn("failed to close amqp channel", sl.Err(err))
	}
	if err := a.amqp.Close(); err != nil {
		a.logger.Warn("failed to close amqp connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
