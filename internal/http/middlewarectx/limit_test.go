package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newNoopLoggerLimit() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRateLimiter(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(l *RateLimiter, userID, remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase/rank", nil)
		req.RemoteAddr = remote
		if userID != "" {
			req = req.WithContext(WithUser(req.Context(), userID, ""))
		}
		w := httptest.NewRecorder()
		l.Middleware(newNoopLoggerLimit())(okHandler).ServeHTTP(w, req)
		return w.Code
	}

	t.Run("allows requests within burst", func(t *testing.T) {
		l := NewRateLimiter(1, 3)
		for range 3 {
			assert.Equal(t, http.StatusOK, serve(l, "u1", "10.0.0.1:1234"))
		}
		assert.Equal(t, http.StatusTooManyRequests, serve(l, "u1", "10.0.0.1:1234"))
	})

	t.Run("clients are limited independently", func(t *testing.T) {
		l := NewRateLimiter(1, 1)
		assert.Equal(t, http.StatusOK, serve(l, "u1", "10.0.0.1:1"))
		assert.Equal(t, http.StatusTooManyRequests, serve(l, "u1", "10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, serve(l, "u2", "10.0.0.1:1"))
	})

	t.Run("anonymous clients keyed by ip", func(t *testing.T) {
		l := NewRateLimiter(1, 1)
		assert.Equal(t, http.StatusOK, serve(l, "", "10.0.0.1:1"))
		assert.Equal(t, http.StatusTooManyRequests, serve(l, "", "10.0.0.1:2"))
		assert.Equal(t, http.StatusOK, serve(l, "", "10.0.0.2:1"))
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		l := NewRateLimiter(1, 1)
		now := time.Now()
		l.now = func() time.Time { return now }
		assert.Equal(t, http.StatusOK, serve(l, "u1", "x"))
		assert.Equal(t, http.StatusTooManyRequests, serve(l, "u1", "x"))

		now = now.Add(1100 * time.Millisecond)
		assert.Equal(t, http.StatusOK, serve(l, "u1", "x"))
	})
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	l := NewRateLimiter(1, 1)
	start := time.Now()
	l.now = func() time.Time { return start }
	for i := range limiterSweepMax {
		l.allow(string(rune('a'+i%26)) + time.Duration(i).String())
	}
	assert.Len(t, l.clients, limiterSweepMax)

	l.now = func() time.Time { return start.Add(limiterIdleTTL + time.Second) }
	l.allow("fresh")
	assert.Len(t, l.clients, 1)
}
