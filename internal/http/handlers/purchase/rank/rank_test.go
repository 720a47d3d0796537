package rank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/rankshop/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rankshop/internal/services/purchase"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) PurchaseRank(ctx context.Context, req purchase.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRankHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		idempotencyKey string
		anonymous      bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешная покупка",
			body: `{"rankId":"citizen","price":4.99}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, purchase.Request{UserID: "u1", ItemID: "citizen", Price: 499}).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true}`,
		},
		{
			name:           "ключ идемпотентности передаётся в сервис",
			body:           `{"rankId":"citizen","price":4.99}`,
			idempotencyKey: "k-1",
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, purchase.Request{UserID: "u1", ItemID: "citizen", Price: 499, IdempotencyKey: "k-1"}).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true}`,
		},
		{
			name:           "без сессии",
			body:           `{"rankId":"citizen","price":4.99}`,
			anonymous:      true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"Not authenticated"}`,
		},
		{
			name:           "некорректный json",
			body:           `{"rankId":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "цена с тремя знаками",
			body:           `{"rankId":"citizen","price":4.999}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"Invalid price"}`,
		},
		{
			name:           "слишком длинный ключ идемпотентности",
			body:           `{"rankId":"citizen","price":4.99}`,
			idempotencyKey: strings.Repeat("k", MaxIdempotencyKey+1),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid Idempotency-Key"}`,
		},
		{
			name:           "цена строкой",
			body:           `{"rankId":"citizen","price":"4.99"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"Invalid price"}`,
		},
		{
			name:           "переполнение цены",
			body:           `{"rankId":"citizen","price":4611686018427387908.99}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"Invalid price"}`,
		},
		{
			name: "цена в экспоненциальной записи",
			body: `{"rankId":"citizen","price":4.99e0}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, purchase.Request{UserID: "u1", ItemID: "citizen", Price: 499}).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true}`,
		},
		{
			name:           "нет rankId",
			body:           `{"price":4.99}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field RankID is a required field`,
		},
		{
			name:           "нулевая цена",
			body:           `{"rankId":"citizen","price":0}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Price must be positive`,
		},
		{
			name: "неизвестный ранг",
			body: `{"rankId":"emperor","price":4.99}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, mock.Anything).Return(fmt.Errorf("wrap: %w", purchase.ErrInvalidSelection))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"Invalid rank selection"}`,
		},
		{
			name: "неверная цена",
			body: `{"rankId":"citizen","price":1.00}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, mock.Anything).Return(purchase.ErrPriceMismatch)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"Invalid price"}`,
		},
		{
			name: "нет требуемого ранга",
			body: `{"rankId":"citizen","price":4.99}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, mock.Anything).Return(purchase.ErrMissingPrerequisite)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `You do not have the required rank`,
		},
		{
			name: "конфликт ключа",
			body: `{"rankId":"citizen","price":4.99}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, mock.Anything).Return(purchase.ErrIdempotencyConflict)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `Idempotency-Key`,
		},
		{
			name: "ошибка хранилища",
			body: `{"rankId":"citizen","price":4.99}`,
			setupMock: func(m *MockService) {
				m.On("PurchaseRank", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: %w", purchase.ErrPurchaseFailed, errors.New("db down")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"Failed to process purchase"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/purchase/rank", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.idempotencyKey != "" {
				req.Header.Set(IdempotencyHeader, tt.idempotencyKey)
			}
			if !tt.anonymous {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), "u1", "steve"))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
