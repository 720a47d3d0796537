// Package ranks реализует HTTP-обработчик списка действующих рангов пользователя.
package ranks

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rankshop/internal/http/response"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
)

// Handler возвращает действующие ранги текущего пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение рангов.
type Service interface {
	ListRanks(ctx context.Context, userID string) ([]models.Entitlement, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Ранги пользователя
// @Description Возвращает действующие ранги. Истёкшие ранги не включаются.
// @Tags User
// @Produce  json
// @Success 200 {object} response.Response{data=[]models.Entitlement}
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 500 {object} response.ErrorResponse "Failed to fetch user ranks"
// @Security BearerAuth
// @Router /user/ranks [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.ranks"
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

	ranks, err := h.service.ListRanks(r.Context(), userID)
	if err != nil {
		log.Error("failed to list ranks", slog.String("user_id", userID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to fetch user ranks"))
		return
	}

	render.JSON(w, r, response.OKWithData(ranks))
}
