// Package middlewarectx содержит HTTP middleware магазина: проверку сессии
// и ограничение частоты запросов.
//
// Auth принимает сессионный JWT из cookie или заголовка Authorization и
// кладёт id пользователя в контекст запроса. Без валидной сессии запрос
// завершается 401 {"status":"Error","error":"Not authenticated"}.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rankshop/internal/http/response"
	"github.com/magabrotheeeer/rankshop/internal/lib/jwt"
	"github.com/magabrotheeeer/rankshop/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID — ключ для внутреннего id пользователя в контексте.
	UserID Key = "user_id"
	// Username — ключ для имени пользователя в контексте.
	Username Key = "username"
)

// NotAuthenticated — текст ответа для запросов без сессии.
const NotAuthenticated = "Not authenticated"

// TokenParser проверяет сессионный токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// Auth возвращает middleware, пропускающий только запросы с валидной сессией.
func Auth(parser TokenParser, cookieName string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Auth"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr := sessionToken(r, cookieName)
			if tokenStr == "" {
				log.Info("request without session")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(NotAuthenticated))
				return
			}

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Info("invalid or expired session", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(NotAuthenticated))
				return
			}

			ctx := WithUser(r.Context(), claims.UserID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserID, userID)
	return context.WithValue(ctx, Username, username)
}

// UserIDFrom достаёт id пользователя из контекста.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserID).(string)
	return id, ok && id != ""
}
