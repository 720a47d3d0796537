package ranksync

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/rankshop/internal/config"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/storage/repository"
)

// SignatureHeader содержит hex HMAC-SHA256 тела запроса.
const SignatureHeader = "X-Webhook-Signature"

// Результаты доставки для метрик.
const (
	ResultDelivered = "delivered"
	ResultSkipped   = "skipped"
	ResultRejected  = "rejected"
	ResultRetry     = "retry"
)

// UserReader находит пользователя по id.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Metrics фиксирует результаты доставки.
type Metrics interface {
	ObserveDelivery(result string)
}

// Deliverer обрабатывает сообщения очереди синхронизации и вызывает вебхук
// игрового прокси.
type Deliverer struct {
	users   UserReader
	client  *http.Client
	url     string
	secret  []byte
	metrics Metrics
	log     *slog.Logger
}

// NewDeliverer создаёт обработчик очереди. metrics может быть nil.
func NewDeliverer(cfg config.RankSync, users UserReader, metrics Metrics, log *slog.Logger) *Deliverer {
	return &Deliverer{
		users:   users,
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.WebhookURL,
		secret:  []byte(cfg.WebhookSecret),
		metrics: metrics,
		log:     log,
	}
}

// Sign вычисляет подпись тела вебхука.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Handle доставляет одно событие. Возвращённая ошибка означает временный
// сбой, и сообщение возвращается в очередь. Неразбираемые события,
// пользователи без привязанного Minecraft-аккаунта и ответы 4xx
// подтверждаются без повтора.
func (d *Deliverer) Handle(ctx context.Context, body []byte) error {
	const op = "ranksync.Handle"
	log := d.log.With(slog.String("op", op))

	var ev models.RankSyncEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("malformed rank sync event, dropping", sl.Err(err))
		d.observe(ResultRejected)
		return nil
	}
	log = log.With(slog.String("purchase_id", ev.PurchaseID), slog.String("user_id", ev.UserID))

	user, err := d.users.GetUser(ctx, ev.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("user not found, dropping rank sync event")
		d.observe(ResultSkipped)
		return nil
	}
	if err != nil {
		d.observe(ResultRetry)
		return fmt.Errorf("%s: %w", op, err)
	}
	if user.MinecraftUsername == nil || *user.MinecraftUsername == "" {
		log.Info("minecraft account not linked, skipping rank sync")
		d.observe(ResultSkipped)
		return nil
	}

	payload, err := json.Marshal(models.RankSyncWebhook{
		Username:   *user.MinecraftUsername,
		Rank:       ev.Grant,
		RevokeRank: ev.Revoke,
		PurchaseID: ev.PurchaseID,
	})
	if err != nil {
		d.observe(ResultRejected)
		return fmt.Errorf("%s: %w", op, err)
	}

	status, err := d.post(ctx, payload)
	if err != nil {
		d.observe(ResultRetry)
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case status >= 200 && status < 300:
		log.Info("rank synced", slog.String("rank", ev.Grant))
		d.observe(ResultDelivered)
		return nil
	case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
		log.Error("webhook rejected rank sync", slog.Int("status", status))
		d.observe(ResultRejected)
		return nil
	default:
		d.observe(ResultRetry)
		return fmt.Errorf("%s: webhook responded %d", op, status)
	}
}

func (d *Deliverer) post(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(d.secret, payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			d.log.Warn("failed to close webhook response", sl.Err(err))
		}
	}()
	return resp.StatusCode, nil
}

func (d *Deliverer) observe(result string) {
	if d.metrics != nil {
		d.metrics.ObserveDelivery(result)
	}
}
