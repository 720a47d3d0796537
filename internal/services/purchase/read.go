package purchase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
)

// ListRanks возвращает действующие ранги пользователя. Результат кешируется
// под текущим поколением; ранги, истёкшие за время жизни кеша,
// отфильтровываются при чтении. Если поколение прочитать не удалось, кеш
// не используется.
func (s *Service) ListRanks(ctx context.Context, userID string) ([]models.Entitlement, error) {
	const op = "purchase.ListRanks"

	key, cacheable := s.ranksKey(userID)
	if cacheable {
		var cached []models.Entitlement
		found, err := s.cache.Get(key, &cached)
		if err != nil {
			s.log.Warn("failed to read ranks cache", slog.String("key", key), sl.Err(err))
		}
		if found {
			return s.active(cached), nil
		}
	}

	ranks, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cacheable {
		if err := s.cache.Set(key, ranks, ranksCacheTTL); err != nil {
			s.log.Warn("failed to cache ranks", slog.String("key", key), sl.Err(err))
		}
	}
	return ranks, nil
}

// ranksKey возвращает ключ снимка для текущего поколения. Поколение
// читается до обращения к базе.
func (s *Service) ranksKey(userID string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	version, err := s.cache.Version(ranksVersionKey(userID))
	if err != nil {
		s.log.Warn("failed to read ranks cache version", slog.String("user_id", userID), sl.Err(err))
		return "", false
	}
	return ranksCacheKey(userID, version), true
}

// ListPurchases возвращает историю покупок, новые сначала.
func (s *Service) ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	const op = "purchase.ListPurchases"
	purchases, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return purchases, nil
}

func (s *Service) active(ranks []models.Entitlement) []models.Entitlement {
	now := s.now()
	out := make([]models.Entitlement, 0, len(ranks))
	for _, r := range ranks {
		if r.ActiveAt(now) {
			out = append(out, r)
		}
	}
	return out
}
