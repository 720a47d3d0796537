// Package discord реализует HTTP-обработчики входа через Discord OAuth2:
// переход на страницу согласия, обработку callback и выход.
//
// Сессия хранится в HttpOnly cookie с подписанным JWT. Параметр state
// сверяется с короткоживущей cookie, выставленной перед переходом в Discord.
package discord

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rankshop/internal/http/response"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/services/identity"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
	stateBytes  = 24
)

// Service описывает вход через Discord.
type Service interface {
	AuthCodeURL(state string) string
	Login(ctx context.Context, code string) (string, *models.User, error)
}

// Session — параметры сессионной cookie.
type Session struct {
	CookieName      string
	Secure          bool
	TTL             time.Duration
	SuccessRedirect string
}

// Handlers объединяет обработчики входа и выхода.
type Handlers struct {
	log     *slog.Logger
	service Service
	session Session
}

// New создает обработчики.
func New(log *slog.Logger, service Service, session Session) *Handlers {
	return &Handlers{
		log:     log,
		service: service,
		session: session,
	}
}

// Login godoc
// @Summary Вход через Discord
// @Tags Auth
// @Success 307 "Переход на страницу согласия Discord"
// @Router /auth/discord [get]
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.discord.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	state, err := newState()
	if err != nil {
		log.Error("failed to generate oauth state", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Authentication failed"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.service.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback godoc
// @Summary Callback Discord OAuth
// @Description Создаёт или обновляет пользователя, выставляет сессионную cookie и перенаправляет в профиль.
// @Tags Auth
// @Param code query string true "Код авторизации"
// @Param state query string true "State"
// @Success 302 "Переход в профиль"
// @Failure 500 {object} response.ErrorResponse "Authentication failed"
// @Router /auth/discord/callback [get]
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.discord.callback"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	clearCookie(w, stateCookie, h.session.Secure)

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Info("discord authorization denied", slog.String("error", e))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		log.Warn("oauth state mismatch")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	token, user, err := h.service.Login(r.Context(), q.Get("code"))
	if errors.Is(err, identity.ErrExchange) || errors.Is(err, identity.ErrProfile) {
		log.Warn("discord login failed", sl.Err(err))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err != nil {
		log.Error("failed to complete login", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Authentication failed"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info("session issued", slog.String("user_id", user.ID))
	http.Redirect(w, r, h.session.SuccessRedirect, http.StatusFound)
}

// Logout godoc
// @Summary Выход
// @Tags Auth
// @Success 302 "Переход на главную"
// @Router /auth/logout [get]
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, h.session.CookieName, h.session.Secure)
	http.Redirect(w, r, "/", http.StatusFound)
}

func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func newState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
