package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	client := setupRedis(t)
	rl := NewRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "test")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "user:abc")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := rl.Allow(ctx, "user:abc")
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit should be rejected")
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	client := setupRedis(t)
	rl := NewRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "test")

	ctx := context.Background()
	allowed, err := rl.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = rl.Allow(ctx, "user:b")
	require.NoError(t, err)
	assert.True(t, allowed, "a different caller has its own window")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	rl := NewRateLimiter(client, nil, "test")
	allowed, err := rl.Allow(context.Background(), "user:abc")
	assert.Error(t, err)
	assert.True(t, allowed, "redis outage must not reject requests")
}

func TestRateLimitMiddleware(t *testing.T) {
	client := setupRedis(t)
	rl := NewRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "test")
	m := NewRateLimitMiddleware(rl, testLogger())

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/teams", nil)
		req.RemoteAddr = "10.0.0.1:52431"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRateLimitMiddlewareKeysBySubject(t *testing.T) {
	client := setupRedis(t)
	rl := NewRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "test")
	m := NewRateLimitMiddleware(rl, testLogger())

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(subject string) int {
		req := httptest.NewRequest(http.MethodGet, "/teams", nil)
		req.RemoteAddr = "10.0.0.1:52431"
		req = req.WithContext(WithAuthContext(req.Context(), &AuthContext{Subject: subject}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("auth0|a"))
	assert.Equal(t, http.StatusTooManyRequests, send("auth0|a"))
	assert.Equal(t, http.StatusOK, send("auth0|b"), "same IP, different subject")
}
