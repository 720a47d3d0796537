// Package unlink реализует HTTP-обработчик отвязки Minecraft-аккаунта.
package unlink

import (
	"context"
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

// Handler отвязывает ник и возвращает обновлённый профиль.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает отвязку аккаунта.
type Service interface {
	UnlinkMinecraft(ctx context.Context, userID string) (*models.User, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отвязать Minecraft-аккаунт
// @Tags User
// @Produce  json
// @Success 200 {object} response.Response{data=models.User}
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 500 {object} response.ErrorResponse "Failed to unlink Minecraft account"
// @Security BearerAuth
// @Router /user/minecraft [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.unlink"
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

	u, err := h.service.UnlinkMinecraft(r.Context(), userID)
	if errors.Is(err, user.ErrUserNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("User not found"))
		return
	}
	if err != nil {
		log.Error("failed to unlink minecraft account", slog.String("user_id", userID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to unlink Minecraft account"))
		return
	}

	log.Info("minecraft account unlinked", slog.String("user_id", userID))
	render.JSON(w, r, response.OKWithData(u))
}
