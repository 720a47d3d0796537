// Package upgrade реализует HTTP-обработчик апгрейда ранга на следующий
// уровень той же лестницы.
package upgrade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/rankshop/internal/http/handlers/purchase/rank"
	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rankshop/internal/http/response"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
	"github.com/magabrotheeeer/rankshop/internal/models"
	"github.com/magabrotheeeer/rankshop/internal/services/purchase"
)

// Request — тело запроса на апгрейд.
type Request struct {
	UpgradeID string       `json:"upgradeId" validate:"required,max=64" example:"citizen-to-merchant"`
	Price     models.Money `json:"price" validate:"gt=0" swaggertype:"number" example:"4.99"`
}

// Handler обрабатывает апгрейд ранга.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает апгрейд ранга.
type Service interface {
	PurchaseUpgrade(ctx context.Context, req purchase.Request) error
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
// @Summary Апгрейд ранга
// @Description Снимает текущий ранг и выдаёт следующий ранг лестницы в одной транзакции.
// @Tags Purchases
// @Accept  json
// @Produce  json
// @Param request body Request true "Апгрейд и ожидаемая цена"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Неизвестный апгрейд, нет исходного ранга или неверная цена"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 409 {object} response.ErrorResponse "Ключ идемпотентности занят другой покупкой"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Failed to process upgrade"
// @Security BearerAuth
// @Router /purchase/upgrade [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.upgrade"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error(middlewarectx.NotAuthenticated))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		if errors.Is(err, models.ErrInvalidAmount) {
			render.JSON(w, r, response.Error("Invalid price"))
			return
		}
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	key := r.Header.Get(rank.IdempotencyHeader)
	if len(key) > rank.MaxIdempotencyKey {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid Idempotency-Key"))
		return
	}

	err := h.service.PurchaseUpgrade(r.Context(), purchase.Request{
		UserID:         userID,
		ItemID:         req.UpgradeID,
		Price:          req.Price,
		IdempotencyKey: key,
	})
	switch {
	case err == nil:
	case errors.Is(err, purchase.ErrInvalidSelection):
		log.Info("unknown upgrade", slog.String("upgrade_id", req.UpgradeID))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid upgrade selection"))
		return
	case errors.Is(err, purchase.ErrMissingPrerequisite):
		log.Info("source rank not held", slog.String("upgrade_id", req.UpgradeID))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("You do not have the required rank for this upgrade"))
		return
	case errors.Is(err, purchase.ErrPriceMismatch):
		log.Info("price mismatch", slog.String("upgrade_id", req.UpgradeID), slog.String("price", req.Price.String()))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid price"))
		return
	case errors.Is(err, purchase.ErrIdempotencyConflict):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("Idempotency-Key already used for another purchase"))
		return
	default:
		log.Error("failed to process upgrade", slog.String("user_id", userID), slog.String("upgrade_id", req.UpgradeID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to process upgrade"))
		return
	}

	log.Info("rank upgraded", slog.String("user_id", userID), slog.String("upgrade_id", req.UpgradeID))
	render.JSON(w, r, response.Success())
}
