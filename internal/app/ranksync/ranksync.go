// Package ranksync собирает воркер, доставляющий изменения рангов из
// очереди RabbitMQ на вебхук игрового прокси и рассылающий квитанции.
package ranksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/rankshop/internal/catalog"
	"github.com/magabrotheeeer/rankshop/internal/config"
	"github.com/magabrotheeeer/rankshop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/lib/smtp"
	"github.com/magabrotheeeer/rankshop/internal/metrics"
	ranksyncservice "github.com/magabrotheeeer/rankshop/internal/services/ranksync"
	"github.com/magabrotheeeer/rankshop/internal/services/receipt"
	"github.com/magabrotheeeer/rankshop/internal/storage/repository"
)

// ErrWebhookNotConfigured возвращается, если адрес вебхука не задан.
var ErrWebhookNotConfigured = errors.New("ranksync webhook url is not configured")

// App — воркер синхронизации рангов.
type App struct {
	logger    *slog.Logger
	db        *repository.Storage
	conn      *amqp.Connection
	ch        *amqp.Channel
	deliverer *ranksyncservice.Deliverer
	mailer    *receipt.Mailer
	metrics   *http.Server
}

// New подключается к базе и брокеру и готовит обработчик очереди.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "ranksync.New"

	if cfg.RankSync.WebhookURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrWebhookNotConfigured)
	}
	if cfg.RankSync.WebhookSecret == "" {
		logger.Warn("ranksync webhook secret is empty, requests are signed with an empty key")
	}

	ranks, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var transport smtp.TransportInterface
	if cfg.SMTP.Host != "" {
		transport = smtp.NewTransport(cfg.SMTP, logger)
	} else {
		logger.Info("smtp host is empty, purchase receipts are disabled")
	}

	db, err := repository.New(cfg.StorageConnectionString)
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

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &App{
		logger:    logger,
		db:        db,
		conn:      conn,
		ch:        ch,
		deliverer: ranksyncservice.NewDeliverer(cfg.RankSync, db, m, logger),
		mailer:    receipt.NewMailer(db, ranks, transport, logger),
		metrics: &http.Server{
			Addr:              cfg.HTTPServer.AddressHTTP,
			Handler:           mux,
			ReadHeaderTimeout: cfg.HTTPServer.TimeoutHTTP,
		},
	}, nil
}

// Run потребляет очереди до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	const op = "ranksync.Run"

	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.RankSyncQueue, a.deliverer.Handle); err != nil {
		a.close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.ReceiptQueue, a.mailer.Handle); err != nil {
		a.close()
		return fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", sl.Err(err))
		}
	}()

	closed := a.conn.NotifyClose(make(chan *amqp.Error, 1))
	a.logger.Info("ranksync worker started", slog.String("queue", rabbitmq.RankSyncQueue))

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down ranksync worker")
	case amqpErr := <-closed:
		if amqpErr != nil {
			err = fmt.Errorf("%s: broker connection closed: %w", op, amqpErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := a.metrics.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Warn("failed to stop metrics server", sl.Err(shutdownErr))
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Warn("failed to close amqp channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("failed to close amqp connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
