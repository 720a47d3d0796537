package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/rankshop/internal/models"
)

// ErrInvalidTransition возвращается при попытке сменить статус записи,
// которая уже не в pending.
var ErrInvalidTransition = errors.New("invalid purchase status transition")

const purchaseColumns = `id, user_id, rank_name, kind, item_id, price_minor, status,
	COALESCE(idempotency_key, ''), created_at, updated_at`

// Record добавляет запись о покупке в статусе pending.
func (s *Storage) Record(ctx context.Context, p models.Purchase) (*models.Purchase, error) {
	const op = "storage.Record"
	p.Status = models.PurchasePending
	return s.insertPurchase(ctx, op, p)
}

// RecordFailed добавляет запись о неудавшейся покупке. Используется после
// отката транзакции, чтобы попытка осталась в истории.
func (s *Storage) RecordFailed(ctx context.Context, p models.Purchase) (*models.Purchase, error) {
	const op = "storage.RecordFailed"
	p.Status = models.PurchaseFailed
	p.IdempotencyKey = ""
	return s.insertPurchase(ctx, op, p)
}

func (s *Storage) insertPurchase(ctx context.Context, op string, p models.Purchase) (*models.Purchase, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var key sql.NullString
	if p.IdempotencyKey != "" {
		key = sql.NullString{String: p.IdempotencyKey, Valid: true}
	}

	query := `INSERT INTO purchases (id, user_id, rank_name, kind, item_id, price_minor, status, idempotency_key)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING created_at, updated_at`
	err := s.conn(ctx).QueryRowContext(ctx, query,
		p.ID, p.UserID, p.RankName, string(p.Kind), p.ItemID, int64(p.Price), string(p.Status), key,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// MarkStatus переводит запись из pending в конечный статус.
// Записи в completed или failed не меняются.
func (s *Storage) MarkStatus(ctx context.Context, id string, status models.PurchaseStatus) error {
	const op = "storage.MarkStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !status.Terminal() {
		return fmt.Errorf("%s: %w: target %q", op, ErrInvalidTransition, status)
	}

	result, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE purchases SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = 'pending'`, string(status), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: purchase %s: %w", op, id, ErrInvalidTransition)
	}
	return nil
}

// ListForUser возвращает историю покупок пользователя, новые сначала.
func (s *Storage) ListForUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	const op = "storage.ListForUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Purchase, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindByIdempotencyKey ищет покупку пользователя по ключу идемпотентности.
// Отсутствие записи не ошибка: возвращается nil.
func (s *Storage) FindByIdempotencyKey(ctx context.Context, userID, key string) (*models.Purchase, error) {
	const op = "storage.FindByIdempotencyKey"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row scanner) (*models.Purchase, error) {
	var p models.Purchase
	var price int64
	if err := row.Scan(&p.ID, &p.UserID, &p.RankName, &p.Kind, &p.ItemID, &price,
		&p.Status, &p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Price = models.Money(price)
	return &p, nil
}
