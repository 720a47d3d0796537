// Package user реализует профиль пользователя: чтение, настройки,
// привязку игрового ника и флаги уведомлений.
package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/storage/repository"
)

var (
	// ErrUserNotFound — пользователя сессии нет в базе.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameRequired — ник Minecraft не передан.
	ErrUsernameRequired = errors.New("username is required")
	// ErrInvalidUsername — ник не соответствует правилам Minecraft.
	ErrInvalidUsername = errors.New("invalid Minecraft username")
	// ErrNoPreferences — в запросе нет ни одного флага уведомлений.
	ErrNoPreferences = errors.New("no valid preferences provided")
)

// Ники Minecraft: 3-16 символов, латиница, цифры и подчёркивание.
var minecraftName = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// Repository — хранилище пользователей.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateSettings(ctx context.Context, id string, settings models.UserSettings) error
	SetMinecraftUsername(ctx context.Context, id string, username *string) (*models.User, error)
	UpdatePreferences(ctx context.Context, id string, prefs models.Preferences) (*models.User, error)
}

// Service реализует операции с профилем.
type Service struct {
	repo Repository
}

// New создаёт сервис профиля.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get возвращает профиль пользователя.
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	const op = "user.Get"
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// UpdateSettings перезаписывает настройки. Пустой ник отвязывает аккаунт.
func (s *Service) UpdateSettings(ctx context.Context, userID string, settings models.UserSettings) error {
	const op = "user.UpdateSettings"
	if settings.MinecraftUsername != nil {
		name := strings.TrimSpace(*settings.MinecraftUsername)
		if name == "" {
			settings.MinecraftUsername = nil
		} else {
			if !minecraftName.MatchString(name) {
				return fmt.Errorf("%s: %w", op, ErrInvalidUsername)
			}
			settings.MinecraftUsername = &name
		}
	}
	if err := s.repo.UpdateSettings(ctx, userID, settings); err != nil {
		return wrap(op, err)
	}
	return nil
}

// LinkMinecraft привязывает игровой ник.
func (s *Service) LinkMinecraft(ctx context.Context, userID, username string) (*models.User, error) {
	const op = "user.LinkMinecraft"
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUsernameRequired)
	}
	if !minecraftName.MatchString(username) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}
	u, err := s.repo.SetMinecraftUsername(ctx, userID, &username)
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// UnlinkMinecraft отвязывает игровой ник.
func (s *Service) UnlinkMinecraft(ctx context.Context, userID string) (*models.User, error) {
	const op = "user.UnlinkMinecraft"
	u, err := s.repo.SetMinecraftUsername(ctx, userID, nil)
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

// UpdatePreferences меняет только переданные флаги уведомлений.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs models.Preferences) (*models.User, error) {
	const op = "user.UpdatePreferences"
	if prefs.Empty() {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPreferences)
	}
	u, err := s.repo.UpdatePreferences(ctx, userID, prefs)
	if err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}

func wrap(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
