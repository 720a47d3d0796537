// Package identity реализует вход через Discord OAuth2: обмен кода на токен,
// получение профиля, создание пользователя и выпуск сессионного JWT.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/magabrotheeeer/rankshop/internal/config"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
)

var (
	// ErrExchange — Discord не принял код авторизации.
	ErrExchange = errors.New("oauth code exchange failed")
	// ErrProfile — не удалось получить профиль Discord.
	ErrProfile = errors.New("discord profile unavailable")
)

var scopes = []string{"identify", "email", "guilds.join"}

// Repository сохраняет пользователей, вошедших через Discord.
type Repository interface {
	UpsertDiscordUser(ctx context.Context, profile models.DiscordProfile, sealedRefresh []byte) (*models.User, error)
}

// Sealer шифрует refresh-токен перед записью в базу.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

// TokenMaker выпускает сессионные токены.
type TokenMaker interface {
	GenerateToken(userID, username string) (string, error)
}

// Service выполняет вход через Discord.
type Service struct {
	oauth   *oauth2.Config
	apiBase string
	repo    Repository
	sealer  Sealer
	tokens  TokenMaker
	log     *slog.Logger
}

// New создаёт сервис входа. Адреса Discord строятся от cfg.APIBaseURL.
func New(cfg config.DiscordOAuth, repo Repository, sealer Sealer, tokens TokenMaker, log *slog.Logger) *Service {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase: base,
		repo:    repo,
		sealer:  sealer,
		tokens:  tokens,
		log:     log,
	}
}

// AuthCodeURL возвращает адрес страницы согласия Discord.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Login обменивает код на токены Discord, сохраняет пользователя и
// возвращает сессионный токен.
func (s *Service) Login(ctx context.Context, code string) (string, *models.User, error) {
	const op = "identity.Login"

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w: %w", op, ErrExchange, err)
	}

	profile, err := s.fetchProfile(ctx, tok)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	var sealed []byte
	if tok.RefreshToken != "" && s.sealer != nil {
		sealed, err = s.sealer.Seal([]byte(tok.RefreshToken))
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	user, err := s.repo.UpsertDiscordUser(ctx, *profile, sealed)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", slog.String("user_id", user.ID), slog.String("discord_id", profile.ID))
	return session, user, nil
}

func (s *Service) fetchProfile(ctx context.Context, tok *oauth2.Token) (*models.DiscordProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.log.Warn("failed to close profile response", sl.Err(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProfile, resp.StatusCode, body)
	}

	var profile models.DiscordProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrProfile)
	}
	return &profile, nil
}
