// Package history реализует HTTP-обработчик истории покупок пользователя.
package history

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

// Handler возвращает журнал покупок, новые записи сначала.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение журнала покупок.
type Service interface {
	ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error)
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary История покупок
// @Tags Purchases
// @Produce  json
// @Success 200 {object} response.Response{data=[]models.Purchase}
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 500 {object} response.ErrorResponse "Failed to fetch purchases"
// @Security BearerAuth
// @Router /purchases [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.history"
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

	purchases, err := h.service.ListPurchases(r.Context(), userID)
	if err != nil {
		log.Error("failed to list purchases", slog.String("user_id", userID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to fetch purchases"))
		return
	}

	log.Debug("purchases listed", slog.Int("count", len(purchases)))
	render.JSON(w, r, response.OKWithData(purchases))
}
