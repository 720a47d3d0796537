// Package purchase реализует покупку рангов и апгрейдов.
//
// Сервис проверяет запрос по каталогу (id, цена, требуемый ранг) и в одной
// транзакции хранилища пишет запись журнала, меняет выданные ранги и
// завершает запись. При ошибке хранилища транзакция откатывается, попытка
// фиксируется в журнале со статусом failed, а вызывающему возвращается
// ErrPurchaseFailed.
package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/rankshop/internal/catalog"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
)

const (
	ranksCacheTTL        = 5 * time.Minute
	failureRecordTimeout = 5 * time.Second
)

// Repository — хранилище журнала покупок и выданных рангов.
type Repository interface {
	// WithinTx выполняет fn в одной транзакции.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockUser сериализует покупки одного пользователя.
	LockUser(ctx context.Context, userID string) error

	Grant(ctx context.Context, e models.Entitlement) error
	Revoke(ctx context.Context, userID, rankName string) (int, error)
	HoldsActive(ctx context.Context, userID, rankName string) (bool, error)
	ListActive(ctx context.Context, userID string) ([]models.Entitlement, error)

	Record(ctx context.Context, p models.Purchase) (*models.Purchase, error)
	RecordFailed(ctx context.Context, p models.Purchase) (*models.Purchase, error)
	MarkStatus(ctx context.Context, id string, status models.PurchaseStatus) error
	ListForUser(ctx context.Context, userID string) ([]models.Purchase, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*models.Purchase, error)
}

// Catalog — источник цен и определений рангов.
type Catalog interface {
	Rank(id string) (catalog.Rank, bool)
	Upgrade(id string) (catalog.Upgrade, bool)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Version(key string) (int64, error)
	Bump(key string) (int64, error)
}

// Notifier публикует изменения рангов для игрового сервера.
type Notifier interface {
	Publish(ctx context.Context, ev models.RankSyncEvent) error
}

// Metrics фиксирует исходы покупок.
type Metrics interface {
	ObservePurchase(kind, outcome string, elapsed time.Duration)
}

// Request — запрос на покупку ранга или апгрейда.
type Request struct {
	UserID         string
	ItemID         string
	Price          models.Money
	IdempotencyKey string
}

// Service реализует покупки и чтение рангов и истории.
type Service struct {
	repo     Repository
	catalog  Catalog
	cache    Cache
	notifier Notifier
	metrics  Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт сервис покупок.
func New(repo Repository, cat Catalog, cache Cache, notifier Notifier, metrics Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		catalog:  cat,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// plan — проверенное каталогом описание изменений одной покупки.
type plan struct {
	kind     models.PurchaseKind
	itemID   string
	grant    catalog.Rank
	revoke   string
	requires string
	price    models.Money
}

// PurchaseRank покупает ранг из каталога.
func (s *Service) PurchaseRank(ctx context.Context, req Request) error {
	const op = "purchase.PurchaseRank"
	start := s.now()

	rank, ok := s.catalog.Rank(req.ItemID)
	if !ok {
		s.observe(models.KindRank, ErrInvalidSelection, start)
		return fmt.Errorf("%s: rank %q: %w", op, req.ItemID, ErrInvalidSelection)
	}
	if req.Price != rank.Price {
		s.observe(models.KindRank, ErrPriceMismatch, start)
		return fmt.Errorf("%s: %w", op, ErrPriceMismatch)
	}

	err := s.execute(ctx, req, plan{
		kind:     models.KindRank,
		itemID:   rank.ID,
		grant:    rank,
		requires: rank.RequiresRank,
		price:    rank.Price,
	})
	s.observe(models.KindRank, err, start)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurchaseUpgrade переводит пользователя на следующий ранг лестницы.
// Предыдущий ранг снимается, новый выдаётся в той же транзакции.
func (s *Service) PurchaseUpgrade(ctx context.Context, req Request) error {
	const op = "purchase.PurchaseUpgrade"
	start := s.now()

	up, ok := s.catalog.Upgrade(req.ItemID)
	if !ok {
		s.observe(models.KindUpgrade, ErrInvalidSelection, start)
		return fmt.Errorf("%s: upgrade %q: %w", op, req.ItemID, ErrInvalidSelection)
	}
	to, ok := s.catalog.Rank(up.To)
	if !ok {
		s.observe(models.KindUpgrade, ErrInvalidSelection, start)
		return fmt.Errorf("%s: upgrade target %q: %w", op, up.To, ErrInvalidSelection)
	}
	to.Features = up.Features

	err := s.execute(ctx, req, plan{
		kind:     models.KindUpgrade,
		itemID:   up.ID,
		grant:    to,
		revoke:   up.From,
		requires: up.From,
		price:    up.Price,
	})
	s.observe(models.KindUpgrade, err, start)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) execute(ctx context.Context, req Request, p plan) error {
	log := s.log.With(
		slog.String("user_id", req.UserID),
		slog.String("kind", string(p.kind)),
		slog.String("item_id", p.itemID),
	)

	var (
		purchaseID string
		replayed   bool
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockUser(ctx, req.UserID); err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			prev, err := s.repo.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				if prev.Kind != p.kind || prev.ItemID != p.itemID {
					return ErrIdempotencyConflict
				}
				replayed = true
				purchaseID = prev.ID
				return nil
			}
		}

		if p.requires != "" {
			held, err := s.repo.HoldsActive(ctx, req.UserID, p.requires)
			if err != nil {
				return err
			}
			if !held {
				return ErrMissingPrerequisite
			}
		}

		if req.Price != p.price {
			return ErrPriceMismatch
		}

		rec, err := s.repo.Record(ctx, models.Purchase{
			UserID:         req.UserID,
			RankName:       p.grant.ID,
			Kind:           p.kind,
			ItemID:         p.itemID,
			Price:          p.price,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}

		if p.revoke != "" {
			if _, err := s.repo.Revoke(ctx, req.UserID, p.revoke); err != nil {
				return err
			}
		}

		if err := s.repo.Grant(ctx, s.entitlement(req.UserID, p.grant)); err != nil {
			return err
		}

		if err := s.repo.MarkStatus(ctx, rec.ID, models.PurchaseCompleted); err != nil {
			return err
		}
		purchaseID = rec.ID
		return nil
	})

	if err != nil {
		if IsClientError(err) {
			log.Info("purchase rejected", sl.Err(err))
			return err
		}
		log.Error("purchase transaction failed", sl.Err(err))
		s.recordFailure(ctx, log, req, p)
		return fmt.Errorf("%w: %w", ErrPurchaseFailed, err)
	}

	if replayed {
		log.Info("purchase replayed by idempotency key", slog.String("purchase_id", purchaseID))
		return nil
	}

	log.Info("purchase completed", slog.String("purchase_id", purchaseID))
	s.invalidateRanks(log, req.UserID)
	s.publish(ctx, log, models.RankSyncEvent{
		PurchaseID: purchaseID,
		UserID:     req.UserID,
		Grant:      p.grant.ID,
		Revoke:     p.revoke,
		Ladder:     string(p.grant.Ladder),
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) entitlement(userID string, r catalog.Rank) models.Entitlement {
	e := models.Entitlement{
		UserID:      userID,
		RankName:    r.ID,
		DisplayName: r.Name,
		Ladder:      string(r.Ladder),
		Description: r.Description,
		Features:    r.Features,
	}
	if r.Duration > 0 {
		expires := s.now().Add(r.Duration).UTC()
		e.ExpiresAt = &expires
	}
	return e
}

// recordFailure оставляет в журнале запись failed после отката транзакции.
func (s *Service) recordFailure(ctx context.Context, log *slog.Logger, req Request, p plan) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()

	_, err := s.repo.RecordFailed(ctx, models.Purchase{
		UserID:   req.UserID,
		RankName: p.grant.ID,
		Kind:     p.kind,
		ItemID:   p.itemID,
		Price:    p.price,
	})
	if err != nil {
		log.Error("failed to record failed purchase", sl.Err(err))
	}
}

func (s *Service) invalidateRanks(log *slog.Logger, userID string) {
	if s.cache == nil {
		return
	}
	key := ranksVersionKey(userID)
	if _, err := s.cache.Bump(key); err != nil {
		log.Warn("failed to invalidate ranks cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, ev models.RankSyncEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		log.Error("failed to publish rank sync event", slog.String("purchase_id", ev.PurchaseID), sl.Err(err))
	}
}

func (s *Service) observe(kind models.PurchaseKind, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObservePurchase(string(kind), outcome(err), s.now().Sub(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case IsClientError(err):
		return "rejected"
	default:
		return "failed"
	}
}

// Снимок рангов хранится под ключом с поколением. Покупка увеличивает
// поколение, поэтому снимок, прочитанный до коммита, записывается под
// старым ключом и больше не читается.
func ranksCacheKey(userID string, version int64) string {
	return "ranks:" + userID + ":" + strconv.FormatInt(version, 10)
}

func ranksVersionKey(userID string) string {
	return "ranks:ver:" + userID
}
