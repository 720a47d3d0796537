// Package settings реализует HTTP-обработчик полного обновления настроек
// пользователя: игрового ника и флагов уведомлений.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rankshop/internal/http/response"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/services/user"
)

// Request — тело запроса. Пустой или отсутствующий ник отвязывает аккаунт.
type Request struct {
	MinecraftUsername    *string `json:"minecraft_username" validate:"omitempty,max=32"`
	EmailNotifications   bool    `json:"email_notifications"`
	DiscordNotifications bool    `json:"discord_notifications"`
}

// Handler обновляет настройки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает обновление настроек.
type Service interface {
	UpdateSettings(ctx context.Context, userID string, settings models.UserSettings) error
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновить настройки
// @Tags User
// @Accept  json
// @Produce  json
// @Param request body Request true "Настройки"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Некорректный ник"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Failed to update user settings"
// @Security BearerAuth
// @Router /user/settings [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.settings"
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
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.UpdateSettings(r.Context(), userID, models.UserSettings(req))
	switch {
	case err == nil:
	case errors.Is(err, user.ErrInvalidUsername):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid Minecraft username"))
		return
	case errors.Is(err, user.ErrUserNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("User not found"))
		return
	default:
		log.Error("failed to update settings", slog.String("user_id", userID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to update user settings"))
		return
	}

	log.Info("settings updated", slog.String("user_id", userID))
	render.JSON(w, r, response.Success())
}
