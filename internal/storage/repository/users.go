package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/rankshop/internal/models"
)

const userColumns = `id, discord_id, username, COALESCE(email, ''), COALESCE(avatar, ''),
	minecraft_username, email_notifications, discord_notifications, created_at, updated_at`

// UpsertDiscordUser создаёт пользователя при первом входе через Discord
// или обновляет данные профиля при последующих. sealedRefresh == nil
// оставляет сохранённый refresh-токен без изменений.
func (s *Storage) UpsertDiscordUser(ctx context.Context, profile models.DiscordProfile, sealedRefresh []byte) (*models.User, error) {
	const op = "storage.UpsertDiscordUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO users (id, discord_id, username, email, avatar, refresh_token_sealed)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (discord_id) DO UPDATE
			  SET username = EXCLUDED.username,
			      email = EXCLUDED.email,
			      avatar = EXCLUDED.avatar,
			      refresh_token_sealed = COALESCE(EXCLUDED.refresh_token_sealed, users.refresh_token_sealed),
			      updated_at = now()
			  RETURNING ` + userColumns
	row := s.conn(ctx).QueryRowContext(ctx, query,
		uuid.NewString(), profile.ID, profile.Username, profile.Email, profile.Avatar, sealedRefresh)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateSettings перезаписывает настройки профиля целиком.
func (s *Storage) UpdateSettings(ctx context.Context, id string, settings models.UserSettings) error {
	const op = "storage.UpdateSettings"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	result, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users
		 SET minecraft_username = $2, email_notifications = $3, discord_notifications = $4, updated_at = now()
		 WHERE id = $1`,
		id, nullString(settings.MinecraftUsername), settings.EmailNotifications, settings.DiscordNotifications)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// SetMinecraftUsername привязывает (или при nil отвязывает) игровой ник.
func (s *Storage) SetMinecraftUsername(ctx context.Context, id string, username *string) (*models.User, error) {
	const op = "storage.SetMinecraftUsername"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.conn(ctx).QueryRowContext(ctx,
		`UPDATE users SET minecraft_username = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns, id, nullString(username))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdatePreferences меняет только переданные флаги уведомлений.
func (s *Storage) UpdatePreferences(ctx context.Context, id string, prefs models.Preferences) (*models.User, error) {
	const op = "storage.UpdatePreferences"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := s.conn(ctx).QueryRowContext(ctx,
		`UPDATE users
		 SET email_notifications = COALESCE($2::boolean, email_notifications),
		     discord_notifications = COALESCE($3::boolean, discord_notifications),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, nullBool(prefs.EmailNotifications), nullBool(prefs.DiscordNotifications))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var mc sql.NullString
	if err := row.Scan(&u.ID, &u.DiscordID, &u.Username, &u.Email, &u.Avatar, &mc,
		&u.EmailNotifications, &u.DiscordNotifications, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if mc.Valid {
		u.MinecraftUsername = &mc.String
	}
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
