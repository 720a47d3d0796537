package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/rankshop/internal/models"
)

// Grant выдаёт ранг пользователю. Повторная выдача того же ранга обновляет
// существующую запись, дубликатов не бывает.
func (s *Storage) Grant(ctx context.Context, e models.Entitlement) error {
	const op = "storage.Grant"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	features, err := json.Marshal(e.Features)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO user_ranks (user_id, name, display_name, ladder, description, features, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
			  ON CONFLICT (user_id, name) DO UPDATE
			  SET display_name = EXCLUDED.display_name,
			      ladder = EXCLUDED.ladder,
			      description = EXCLUDED.description,
			      features = EXCLUDED.features,
			      expires_at = EXCLUDED.expires_at,
			      granted_at = now()`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		e.UserID, e.RankName, e.DisplayName, e.Ladder, e.Description, string(features), e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Revoke забирает ранг и возвращает число удалённых строк. Отзыв ранга,
// которого у пользователя нет, не является ошибкой.
func (s *Storage) Revoke(ctx context.Context, userID, rankName string) (int, error) {
	const op = "storage.Revoke"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	result, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM user_ranks WHERE user_id = $1 AND name = $2`, userID, rankName)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// HoldsActive сообщает, владеет ли пользователь неистёкшим рангом.
func (s *Storage) HoldsActive(ctx context.Context, userID, rankName string) (bool, error) {
	const op = "storage.HoldsActive"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var held bool
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM user_ranks
			WHERE user_id = $1 AND name = $2
			  AND (expires_at IS NULL OR expires_at > now())
		)`, userID, rankName).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return held, nil
}

// ListActive возвращает действующие ранги пользователя. Истёкшие записи
// остаются в таблице, но не попадают в результат.
func (s *Storage) ListActive(ctx context.Context, userID string) ([]models.Entitlement, error) {
	const op = "storage.ListActive"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT name, display_name, ladder, description, features, expires_at, granted_at
			  FROM user_ranks
			  WHERE user_id = $1
			    AND (expires_at IS NULL OR expires_at > now())
			  ORDER BY ladder, name`
	rows, err := s.conn(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Entitlement, 0)
	for rows.Next() {
		e := models.Entitlement{UserID: userID}
		var features []byte
		var expiresAt sql.NullTime
		if err := rows.Scan(&e.RankName, &e.DisplayName, &e.Ladder, &e.Description,
			&features, &expiresAt, &e.GrantedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := json.Unmarshal(features, &e.Features); err != nil {
			return nil, fmt.Errorf("%s: decode features: %w", op, err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			e.ExpiresAt = &t
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// LockUser блокирует строку пользователя до конца транзакции. Так покупки
// одного пользователя выполняются строго по очереди.
func (s *Storage) LockUser(ctx context.Context, userID string) error {
	const op = "storage.LockUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	var id string
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: user %s: %w", op, userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
