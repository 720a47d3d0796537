// Package rank реализует HTTP-обработчик покупки ранга.
//
// Handler принимает {rankId, price}, сверяет цену с каталогом через сервис
// покупок и отвечает {"success":true}. Ошибки клиента возвращаются с
// конкретным сообщением, сбои хранилища с общим.
package rank

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
	"github.com/magabrotheeeer/rankshop/internal/services/purchase"
)

// IdempotencyHeader — заголовок с ключом идемпотентности покупки.
const IdempotencyHeader = "Idempotency-Key"

// MaxIdempotencyKey — наибольшая длина ключа идемпотентности.
const MaxIdempotencyKey = 128

// Request — тело запроса на покупку ранга.
type Request struct {
	RankID string       `json:"rankId" validate:"required,max=64" example:"citizen"`
	Price  models.Money `json:"price" validate:"gt=0" swaggertype:"number" example:"4.99"`
}

// Handler обрабатывает покупку ранга.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает покупку ранга.
type Service interface {
	PurchaseRank(ctx context.Context, req purchase.Request) error
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
// @Summary Купить ранг
// @Description Покупает ранг из каталога. Цена должна совпадать с ценой каталога.
// @Tags Purchases
// @Accept  json
// @Produce  json
// @Param request body Request true "Ранг и ожидаемая цена"
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Неизвестный ранг, неверная цена или нет нужного ранга"
// @Failure 401 {object} response.ErrorResponse "Not authenticated"
// @Failure 409 {object} response.ErrorResponse "Ключ идемпотентности занят другой покупкой"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Failed to process purchase"
// @Security BearerAuth
// @Router /purchase/rank [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.rank"
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

	key := r.Header.Get(IdempotencyHeader)
	if len(key) > MaxIdempotencyKey {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid Idempotency-Key"))
		return
	}

	err := h.service.PurchaseRank(r.Context(), purchase.Request{
		UserID:         userID,
		ItemID:         req.RankID,
		Price:          req.Price,
		IdempotencyKey: key,
	})
	switch {
	case err == nil:
	case errors.Is(err, purchase.ErrInvalidSelection):
		log.Info("unknown rank", slog.String("rank_id", req.RankID))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid rank selection"))
		return
	case errors.Is(err, purchase.ErrPriceMismatch):
		log.Info("price mismatch", slog.String("rank_id", req.RankID), slog.String("price", req.Price.String()))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid price"))
		return
	case errors.Is(err, purchase.ErrMissingPrerequisite):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("You do not have the required rank for this purchase"))
		return
	case errors.Is(err, purchase.ErrIdempotencyConflict):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("Idempotency-Key already used for another purchase"))
		return
	default:
		log.Error("failed to process purchase", slog.String("user_id", userID), slog.String("rank_id", req.RankID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Failed to process purchase"))
		return
	}

	log.Info("rank purchased", slog.String("user_id", userID), slog.String("rank_id", req.RankID))
	render.JSON(w, r, response.Success())
}
