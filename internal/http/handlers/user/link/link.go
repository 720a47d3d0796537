// Package link реализует HTTP-обработчик привязки Minecraft-аккаунта.
package link

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

// Request — тело запроса на привязку.
type Request struct {
	Username string `json:"username" example:"Steve_01"`
}

// Handler привязывает ник и возвращает обновлённый профиль.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает привязку аккаунта.
type Service interface {
	LinkMinecraft(ctx context.Context, userID, username string) (*models.User, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Привязать Minecraft-аккаунт
// @Tags User
// @Accept  json
// @Produce  json
// @Param request body Request true "Ник в Minecraft"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse "Username is required"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 500 {object} response.ErrorResponse "Failed to link Minecraft account"
// @Security BearerAuth
// @Router /user/minecraft [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.link"
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

	u, err := h.service.LinkMinecraft(r.Context(), userID, req.Username)
	switch {
	case err == nil:
	case errors.Is(err, user.ErrUsernameRequired):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Username is required"))
		return
	case errors.Is(err, user.ErrInvalidUsername):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid Minecraft username"))
		return
	case errors.Is(err, user.ErrUserNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("User not found"))
		return
	default:
		log.Error("failed to link minecraft account", slog.String("user_id", userID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to link Minecraft account"))
		return
	}

	log.Info("minecraft account linked", slog.String("user_id", userID))
	render.JSON(w, r, response.OKWithData(u))
}
