// Package preferences реализует HTTP-обработчик частичного обновления
// флагов уведомлений. Поля, не являющиеся булевыми значениями, игнорируются.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rankshop/internal/http/response"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/services/user"
)

// Request — тело запроса. Значения любого типа принимаются, учитываются только bool.
type Request struct {
	EmailNotifications   any `json:"email_notifications" swaggertype:"boolean"`
	DiscordNotifications any `json:"discord_notifications" swaggertype:"boolean"`
}

func (r Request) preferences() models.Preferences {
	var p models.Preferences
	if v, ok := r.EmailNotifications.(bool); ok {
		p.EmailNotifications = &v
	}
	if v, ok := r.DiscordNotifications.(bool); ok {
		p.DiscordNotifications = &v
	}
	return p
}

// Handler обновляет флаги уведомлений.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает частичное обновление настроек.
type Service interface {
	UpdatePreferences(ctx context.Context, userID string, prefs models.Preferences) (*models.User, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Обновить уведомления
// @Tags User
// @Accept  json
// @Produce  json
// @Param request body Request true "Флаги уведомлений"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse "No valid preferences provided"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 500 {object} response.ErrorResponse "Failed to update preferences"
// @Security BearerAuth
// @Router /user/preferences [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.preferences"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error(middlewarectx.NotAuthenticated))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	u, err := h.service.UpdatePreferences(r.Context(), userID, req.preferences())
	switch {
	case err == nil:
	case errors.Is(err, user.ErrNoPreferences):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("No valid preferences provided"))
		return
	case errors.Is(err, user.ErrUserNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("User not found"))
		return
	default:
		log.Error("failed to update preferences", slog.String("user_id", userID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to update preferences"))
		return
	}

	render.JSON(w, r, response.OKWithData(u))
}
